// Package directory provides batched lookups against the identity and team
// directory services.
//
// Each lookup is a single HTTP round-trip covering every requested id, with
// a bounded per-call timeout. Callers decide whether a failed lookup is
// fatal: enrichment degrades, authorization denies.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/platform/timeouts"
	"github.com/dkapsis/pms/internal/services/shared/callerhttp"
)

// Identity is a user record as served by the identity directory.
type Identity struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Role      requestctx.Role `json:"role"`
	Active    bool            `json:"active"`
}

// Team is a team record as served by the team directory.
type Team struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	LeaderID    string   `json:"leader_id"`
	MemberIDs   []string `json:"member_ids"`
}

// IdentityDirectory resolves user ids to identity records.
type IdentityDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]Identity, error)
}

// TeamDirectory resolves team ids to team records.
type TeamDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]Team, error)
}

// Client calls a directory service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// HTTPIdentityDirectory is an IdentityDirectory over the user service API.
type HTTPIdentityDirectory struct {
	client *Client
}

// NewHTTPIdentityDirectory creates an identity directory client.
func NewHTTPIdentityDirectory(baseURL string, client *http.Client) *HTTPIdentityDirectory {
	return &HTTPIdentityDirectory{client: newClient(baseURL, client)}
}

// Lookup resolves the given user ids in one batched call.
func (d *HTTPIdentityDirectory) Lookup(ctx context.Context, ids []string) (map[string]Identity, error) {
	var records []Identity
	if err := d.client.getByIDs(ctx, "/users", ids, &records); err != nil {
		return nil, err
	}
	result := make(map[string]Identity, len(records))
	for _, record := range records {
		result[record.ID] = record
	}
	return result, nil
}

// HTTPTeamDirectory is a TeamDirectory over the team service API.
type HTTPTeamDirectory struct {
	client *Client
}

// NewHTTPTeamDirectory creates a team directory client.
func NewHTTPTeamDirectory(baseURL string, client *http.Client) *HTTPTeamDirectory {
	return &HTTPTeamDirectory{client: newClient(baseURL, client)}
}

// Lookup resolves the given team ids in one batched call.
func (d *HTTPTeamDirectory) Lookup(ctx context.Context, ids []string) (map[string]Team, error) {
	var records []Team
	if err := d.client.getByIDs(ctx, "/teams", ids, &records); err != nil {
		return nil, err
	}
	result := make(map[string]Team, len(records))
	for _, record := range records {
		result[record.ID] = record
	}
	return result, nil
}

func newClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

// getByIDs performs one batched GET <path>?ids=a,b,c and decodes the array.
func (c *Client) getByIDs(ctx context.Context, path string, ids []string, target any) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.DirectoryRequest)
	defer cancel()

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build directory request: %w", err)
	}
	callerhttp.Forward(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("directory request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory %s returned %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode directory response %s: %w", path, err)
	}
	return nil
}
