package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/shared/callerhttp"
)

func TestIdentityLookupBatchesIDs(t *testing.T) {
	var gotIDs string
	var gotUserID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		gotIDs = r.URL.Query().Get("ids")
		gotUserID = r.Header.Get(callerhttp.HeaderUserID)
		_ = json.NewEncoder(w).Encode([]Identity{
			{ID: "10", Username: "lead", Role: requestctx.RoleTeamLeader, Active: true},
			{ID: "20", Username: "dev", Role: requestctx.RoleMember, Active: true},
		})
	}))
	defer server.Close()

	dir := NewHTTPIdentityDirectory(server.URL, server.Client())
	ctx := requestctx.WithCaller(context.Background(), requestctx.Caller{ID: "10", Role: requestctx.RoleTeamLeader})

	identities, err := dir.Lookup(ctx, []string{"10", "20"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if gotIDs != "10,20" {
		t.Fatalf("expected batched ids param, got %q", gotIDs)
	}
	if gotUserID != "10" {
		t.Fatalf("expected forwarded caller header, got %q", gotUserID)
	}
	if len(identities) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(identities))
	}
	if identities["10"].Username != "lead" {
		t.Fatalf("unexpected identity %+v", identities["10"])
	}
}

func TestTeamLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/teams" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]Team{
			{ID: "team-1", Name: "Development Team", LeaderID: "10", MemberIDs: []string{"10", "20"}},
		})
	}))
	defer server.Close()

	dir := NewHTTPTeamDirectory(server.URL, server.Client())
	teams, err := dir.Lookup(context.Background(), []string{"team-1"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if teams["team-1"].LeaderID != "10" {
		t.Fatalf("unexpected team %+v", teams["team-1"])
	}
}

func TestLookupEmptyIDsSkipsRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("expected no request for empty id set")
	}))
	defer server.Close()

	dir := NewHTTPIdentityDirectory(server.URL, server.Client())
	identities, err := dir.Lookup(context.Background(), nil)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(identities) != 0 {
		t.Fatalf("expected no identities, got %d", len(identities))
	}
}

func TestLookupSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := NewHTTPTeamDirectory(server.URL, server.Client())
	if _, err := dir.Lookup(context.Background(), []string{"team-1"}); err == nil {
		t.Fatal("expected error from failing directory")
	}
}

func TestLookupHonorsCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	dir := NewHTTPIdentityDirectory(server.URL, server.Client())
	start := time.Now()
	_, err := dir.Lookup(ctx, []string{"10"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected abandoned call to return promptly, took %v", elapsed)
	}
}
