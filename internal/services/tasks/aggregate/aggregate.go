// Package aggregate composes the externally visible task representation.
//
// Locally-owned rows (task, comments, attachments) are joined with identity
// and team records fetched from the directory services. Directory data is
// resolved fresh per request and never persisted; a directory outage
// degrades the corresponding *_details fields to null instead of failing
// the read.
package aggregate

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dkapsis/pms/internal/services/tasks/directory"
	"github.com/dkapsis/pms/internal/services/tasks/storage"
	"github.com/dkapsis/pms/internal/services/tasks/task"
)

var tracer = otel.Tracer("pms/tasks/aggregate")

// TaskView is the enriched single-task representation.
type TaskView struct {
	TaskSummary
	Comments    []CommentView    `json:"comments"`
	Attachments []AttachmentView `json:"attachments"`
}

// TaskSummary is the enriched task representation without child rows,
// used for list responses.
type TaskSummary struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Status            task.Status         `json:"status"`
	Priority          task.Priority       `json:"priority"`
	DueDate           string              `json:"due_date,omitempty"`
	TeamID            string              `json:"team_id"`
	CreatedBy         string              `json:"created_by"`
	AssignedTo        string              `json:"assigned_to,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	CreatedByDetails  *directory.Identity `json:"created_by_details"`
	AssignedToDetails *directory.Identity `json:"assigned_to_details"`
	TeamDetails       *directory.Team     `json:"team_details"`
}

// CommentView is a comment with its author enrichment.
//
// AuthorUsername is the write-time snapshot; AuthorDetails reflects the
// directory at read time and may disagree with it.
type CommentView struct {
	ID             string              `json:"id"`
	TaskID         string              `json:"task_id"`
	AuthorID       string              `json:"author_id"`
	AuthorUsername string              `json:"author_username"`
	Content        string              `json:"content"`
	CreatedAt      time.Time           `json:"created_at"`
	AuthorDetails  *directory.Identity `json:"author_details"`
}

// AttachmentView is an attachment with its author enrichment.
type AttachmentView struct {
	ID            string              `json:"id"`
	TaskID        string              `json:"task_id"`
	AuthorID      string              `json:"author_id"`
	URL           string              `json:"url"`
	OriginalName  string              `json:"original_name"`
	CreatedAt     time.Time           `json:"created_at"`
	AuthorDetails *directory.Identity `json:"author_details"`
}

// Aggregator joins task store rows with directory records.
type Aggregator struct {
	store      storage.TaskStore
	identities directory.IdentityDirectory
	teams      directory.TeamDirectory
}

// New creates an aggregator over the given store and directories.
func New(store storage.TaskStore, identities directory.IdentityDirectory, teams directory.TeamDirectory) *Aggregator {
	return &Aggregator{
		store:      store,
		identities: identities,
		teams:      teams,
	}
}

// GetTask returns the enriched view of one task.
func (a *Aggregator) GetTask(ctx context.Context, id string) (TaskView, error) {
	ctx, span := tracer.Start(ctx, "aggregate.GetTask",
		trace.WithAttributes(attribute.String("task.id", id)))
	defer span.End()

	t, err := a.store.GetTask(ctx, id)
	if err != nil {
		return TaskView{}, err
	}
	comments, err := a.store.ListComments(ctx, id)
	if err != nil {
		return TaskView{}, err
	}
	attachments, err := a.store.ListAttachments(ctx, id)
	if err != nil {
		return TaskView{}, err
	}

	userIDs := newIDSet()
	userIDs.add(t.CreatedBy)
	userIDs.add(t.AssignedTo)
	for _, c := range comments {
		userIDs.add(c.AuthorID)
	}
	for _, att := range attachments {
		userIDs.add(att.AuthorID)
	}

	identities, teams := a.enrich(ctx, userIDs.values(), []string{t.TeamID})

	view := TaskView{
		TaskSummary: summarize(t, identities, teams),
		Comments:    make([]CommentView, 0, len(comments)),
		Attachments: make([]AttachmentView, 0, len(attachments)),
	}
	for _, c := range comments {
		view.Comments = append(view.Comments, CommentView{
			ID:             c.ID,
			TaskID:         c.TaskID,
			AuthorID:       c.AuthorID,
			AuthorUsername: c.AuthorUsername,
			Content:        c.Content,
			CreatedAt:      c.CreatedAt,
			AuthorDetails:  identityRef(identities, c.AuthorID),
		})
	}
	for _, att := range attachments {
		view.Attachments = append(view.Attachments, AttachmentView{
			ID:            att.ID,
			TaskID:        att.TaskID,
			AuthorID:      att.AuthorID,
			URL:           att.URL,
			OriginalName:  att.OriginalName,
			CreatedAt:     att.CreatedAt,
			AuthorDetails: identityRef(identities, att.AuthorID),
		})
	}
	return view, nil
}

// ListTasks returns enriched summaries for every task matching the filter.
//
// Enrichment is batched across the whole result set: one identity call and
// one team call cover the union of ids, regardless of how many tasks match.
func (a *Aggregator) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]TaskSummary, error) {
	ctx, span := tracer.Start(ctx, "aggregate.ListTasks")
	defer span.End()

	tasks, err := a.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}

	userIDs := newIDSet()
	teamIDs := newIDSet()
	for _, t := range tasks {
		userIDs.add(t.CreatedBy)
		userIDs.add(t.AssignedTo)
		teamIDs.add(t.TeamID)
	}

	identities, teams := a.enrich(ctx, userIDs.values(), teamIDs.values())

	summaries := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, summarize(t, identities, teams))
	}
	return summaries, nil
}

// enrich fetches identities and teams concurrently. Failures degrade to
// nil maps; reads of locally-owned data never block on a directory outage.
func (a *Aggregator) enrich(ctx context.Context, userIDs, teamIDs []string) (map[string]directory.Identity, map[string]directory.Team) {
	var identities map[string]directory.Identity
	var teams map[string]directory.Team

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := a.identities.Lookup(ctx, userIDs)
		if err != nil {
			log.Printf("identity enrichment degraded: %v", err)
			return nil
		}
		identities = result
		return nil
	})
	g.Go(func() error {
		result, err := a.teams.Lookup(ctx, teamIDs)
		if err != nil {
			log.Printf("team enrichment degraded: %v", err)
			return nil
		}
		teams = result
		return nil
	})
	_ = g.Wait()

	return identities, teams
}

func summarize(t task.Task, identities map[string]directory.Identity, teams map[string]directory.Team) TaskSummary {
	return TaskSummary{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		Status:            t.Status,
		Priority:          t.Priority,
		DueDate:           t.DueDate,
		TeamID:            t.TeamID,
		CreatedBy:         t.CreatedBy,
		AssignedTo:        t.AssignedTo,
		CreatedAt:         t.CreatedAt,
		CreatedByDetails:  identityRef(identities, t.CreatedBy),
		AssignedToDetails: identityRef(identities, t.AssignedTo),
		TeamDetails:       teamRef(teams, t.TeamID),
	}
}

func identityRef(identities map[string]directory.Identity, id string) *directory.Identity {
	if id == "" {
		return nil
	}
	record, ok := identities[id]
	if !ok {
		return nil
	}
	return &record
}

func teamRef(teams map[string]directory.Team, id string) *directory.Team {
	if id == "" {
		return nil
	}
	record, ok := teams[id]
	if !ok {
		return nil
	}
	return &record
}

// idSet collects unique non-empty ids preserving insertion order.
type idSet struct {
	seen  map[string]struct{}
	order []string
}

func newIDSet() *idSet {
	return &idSet{seen: make(map[string]struct{})}
}

func (s *idSet) add(id string) {
	if id == "" {
		return
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *idSet) values() []string {
	return s.order
}
