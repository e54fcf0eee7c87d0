package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkapsis/pms/internal/services/tasks/directory"
	"github.com/dkapsis/pms/internal/services/tasks/storage"
	"github.com/dkapsis/pms/internal/services/tasks/task"
)

type fakeStore struct {
	tasks       map[string]task.Task
	order       []string
	comments    map[string][]task.Comment
	attachments map[string][]task.Attachment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:       make(map[string]task.Task),
		comments:    make(map[string][]task.Comment),
		attachments: make(map[string][]task.Attachment),
	}
}

func (s *fakeStore) CreateTask(_ context.Context, t task.Task) error {
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	return nil
}

func (s *fakeStore) GetTask(_ context.Context, id string) (task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) ListTasks(_ context.Context, filter storage.TaskFilter) ([]task.Task, error) {
	var result []task.Task
	for _, id := range s.order {
		t := s.tasks[id]
		if filter.TeamID != "" && t.TeamID != filter.TeamID {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (s *fakeStore) UpdateTaskFields(_ context.Context, id string, _ map[string]any) (task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) DeleteTask(_ context.Context, id string) error {
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) AddComment(_ context.Context, c task.Comment) error {
	s.comments[c.TaskID] = append(s.comments[c.TaskID], c)
	return nil
}

func (s *fakeStore) ListComments(_ context.Context, taskID string) ([]task.Comment, error) {
	return s.comments[taskID], nil
}

func (s *fakeStore) AddAttachment(_ context.Context, a task.Attachment) error {
	s.attachments[a.TaskID] = append(s.attachments[a.TaskID], a)
	return nil
}

func (s *fakeStore) ListAttachments(_ context.Context, taskID string) ([]task.Attachment, error) {
	return s.attachments[taskID], nil
}

func (s *fakeStore) GetAttachmentByStoredName(_ context.Context, _ string) (task.Attachment, error) {
	return task.Attachment{}, storage.ErrNotFound
}

type fakeIdentityDirectory struct {
	records map[string]directory.Identity
	calls   int
	lastIDs []string
	fail    bool
}

func (d *fakeIdentityDirectory) Lookup(_ context.Context, ids []string) (map[string]directory.Identity, error) {
	d.calls++
	d.lastIDs = ids
	if d.fail {
		return nil, errors.New("identity directory down")
	}
	result := make(map[string]directory.Identity)
	for _, id := range ids {
		if record, ok := d.records[id]; ok {
			result[id] = record
		}
	}
	return result, nil
}

type fakeTeamDirectory struct {
	records map[string]directory.Team
	calls   int
	fail    bool
}

func (d *fakeTeamDirectory) Lookup(_ context.Context, ids []string) (map[string]directory.Team, error) {
	d.calls++
	if d.fail {
		return nil, errors.New("team directory down")
	}
	result := make(map[string]directory.Team)
	for _, id := range ids {
		if record, ok := d.records[id]; ok {
			result[id] = record
		}
	}
	return result, nil
}

func seededStore(t *testing.T) *fakeStore {
	t.Helper()
	store := newFakeStore()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	_ = store.CreateTask(context.Background(), task.Task{
		ID: "t1", Title: "Task Service API", Status: task.StatusInProgress,
		Priority: task.PriorityMedium, TeamID: "team-1",
		CreatedBy: "10", AssignedTo: "20", CreatedAt: base,
	})
	_ = store.AddComment(context.Background(), task.Comment{
		ID: "c1", TaskID: "t1", AuthorID: "20", AuthorUsername: "dev", Content: "on it", CreatedAt: base.Add(time.Minute),
	})
	_ = store.AddAttachment(context.Background(), task.Attachment{
		ID: "a1", TaskID: "t1", AuthorID: "30", URL: "/files/x", OriginalName: "x.txt", StoredName: "x", CreatedAt: base.Add(2 * time.Minute),
	})
	return store
}

func directories() (*fakeIdentityDirectory, *fakeTeamDirectory) {
	identities := &fakeIdentityDirectory{records: map[string]directory.Identity{
		"10": {ID: "10", Username: "lead", Active: true},
		"20": {ID: "20", Username: "dev", Active: true},
		"30": {ID: "30", Username: "qa", Active: true},
	}}
	teams := &fakeTeamDirectory{records: map[string]directory.Team{
		"team-1": {ID: "team-1", Name: "Development Team", LeaderID: "10"},
	}}
	return identities, teams
}

func TestGetTaskEnrichesAllReferences(t *testing.T) {
	store := seededStore(t)
	identities, teams := directories()
	agg := New(store, identities, teams)

	view, err := agg.GetTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}

	if view.CreatedByDetails == nil || view.CreatedByDetails.Username != "lead" {
		t.Fatalf("unexpected creator details %+v", view.CreatedByDetails)
	}
	if view.AssignedToDetails == nil || view.AssignedToDetails.Username != "dev" {
		t.Fatalf("unexpected assignee details %+v", view.AssignedToDetails)
	}
	if view.TeamDetails == nil || view.TeamDetails.Name != "Development Team" {
		t.Fatalf("unexpected team details %+v", view.TeamDetails)
	}
	if len(view.Comments) != 1 || view.Comments[0].AuthorDetails == nil {
		t.Fatalf("expected enriched comment, got %+v", view.Comments)
	}
	if len(view.Attachments) != 1 || view.Attachments[0].AuthorDetails == nil {
		t.Fatalf("expected enriched attachment, got %+v", view.Attachments)
	}
}

func TestGetTaskBatchesIdentityLookup(t *testing.T) {
	store := seededStore(t)
	identities, teams := directories()
	agg := New(store, identities, teams)

	if _, err := agg.GetTask(context.Background(), "t1"); err != nil {
		t.Fatalf("get task: %v", err)
	}

	if identities.calls != 1 {
		t.Fatalf("expected one identity call, got %d", identities.calls)
	}
	if teams.calls != 1 {
		t.Fatalf("expected one team call, got %d", teams.calls)
	}
	// creator, assignee, comment author, attachment author - deduplicated.
	want := map[string]bool{"10": true, "20": true, "30": true}
	if len(identities.lastIDs) != len(want) {
		t.Fatalf("expected %d unique ids, got %v", len(want), identities.lastIDs)
	}
	for _, got := range identities.lastIDs {
		if !want[got] {
			t.Fatalf("unexpected id %q in lookup", got)
		}
	}
}

func TestGetTaskDegradesWhenDirectoriesDown(t *testing.T) {
	store := seededStore(t)
	identities, teams := directories()
	identities.fail = true
	teams.fail = true
	agg := New(store, identities, teams)

	view, err := agg.GetTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("expected degraded read to succeed, got %v", err)
	}

	if view.Title != "Task Service API" {
		t.Fatalf("expected local fields, got %+v", view.TaskSummary)
	}
	if view.CreatedByDetails != nil || view.AssignedToDetails != nil || view.TeamDetails != nil {
		t.Fatal("expected nil details when directories are down")
	}
	if len(view.Comments) != 1 || len(view.Attachments) != 1 {
		t.Fatal("expected locally-owned rows despite directory outage")
	}
	if view.Comments[0].AuthorUsername != "dev" {
		t.Fatal("expected snapshot username to survive directory outage")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	agg := New(newFakeStore(), &fakeIdentityDirectory{}, &fakeTeamDirectory{})
	if _, err := agg.GetTask(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListTasksBatchesAcrossResultSet(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	for i, creator := range []string{"10", "10", "11"} {
		_ = store.CreateTask(context.Background(), task.Task{
			ID: string(rune('a' + i)), Title: "T", Status: task.StatusTodo, Priority: task.PriorityLow,
			TeamID: "team-1", CreatedBy: creator, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	identities, teams := directories()
	agg := New(store, identities, teams)

	summaries, err := agg.ListTasks(context.Background(), storage.TaskFilter{TeamID: "team-1"})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}
	if identities.calls != 1 {
		t.Fatalf("expected one identity call for the whole list, got %d", identities.calls)
	}
	if teams.calls != 1 {
		t.Fatalf("expected one team call for the whole list, got %d", teams.calls)
	}
	if len(identities.lastIDs) != 2 {
		t.Fatalf("expected deduplicated creator ids, got %v", identities.lastIDs)
	}
}

func TestListTasksEmptyResultSkipsLookups(t *testing.T) {
	identities, teams := directories()
	agg := New(newFakeStore(), identities, teams)

	summaries, err := agg.ListTasks(context.Background(), storage.TaskFilter{TeamID: "team-9"})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected no summaries, got %d", len(summaries))
	}
}
