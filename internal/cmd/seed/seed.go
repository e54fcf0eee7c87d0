// Package seed populates a running cluster with demo records through the
// public service APIs.
//
// The seeder asserts caller identities the same way a gateway would, so
// every write goes through the normal permission checks: the admin creates
// accounts and teams, leaders create tasks, members comment.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"

	entrypoint "github.com/dkapsis/pms/internal/platform/cmd"
	"github.com/dkapsis/pms/internal/platform/requestctx"
	"github.com/dkapsis/pms/internal/services/shared/callerhttp"
)

// Config holds seed command configuration.
type Config struct {
	UserBaseURL string `env:"PMS_USER_BASE_URL" envDefault:"http://localhost:8081"`
	TeamBaseURL string `env:"PMS_TEAM_BASE_URL" envDefault:"http://localhost:8082"`
	TaskBaseURL string `env:"PMS_TASK_BASE_URL" envDefault:"http://localhost:8083"`
	Verbose     bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.UserBaseURL, "user-base-url", cfg.UserBaseURL, "user service base URL")
	fs.StringVar(&cfg.TeamBaseURL, "team-base-url", cfg.TeamBaseURL, "team service base URL")
	fs.StringVar(&cfg.TaskBaseURL, "task-base-url", cfg.TaskBaseURL, "task service base URL")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// caller is the identity the seeder asserts for a request.
type caller struct {
	ID   string
	Role requestctx.Role
}

// client posts JSON to the service APIs with asserted caller headers.
type client struct {
	http    *http.Client
	out     io.Writer
	verbose bool
}

func (c *client) postJSON(ctx context.Context, url string, as caller, body any, target any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if as.ID != "" {
		req.Header.Set(callerhttp.HeaderUserID, as.ID)
		req.Header.Set(callerhttp.HeaderUserRole, string(as.Role))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("post %s: %s: %s", url, resp.Status, strings.TrimSpace(string(detail)))
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", url, err)
	}
	return nil
}

func (c *client) logf(format string, args ...any) {
	if c.verbose {
		fmt.Fprintf(c.out, format+"\n", args...)
	}
}

type seededUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type seededTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type seededTask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// userSpec is one demo account.
type userSpec struct {
	Username  string
	FirstName string
	LastName  string
	Role      requestctx.Role
}

var demoUsers = []userSpec{
	{Username: "admin", FirstName: "Avery", LastName: "Admin", Role: requestctx.RoleAdmin},
	{Username: "lead", FirstName: "Lena", LastName: "Leader", Role: requestctx.RoleTeamLeader},
	{Username: "dev", FirstName: "Devon", LastName: "Builder", Role: requestctx.RoleMember},
	{Username: "qa", FirstName: "Quinn", LastName: "Tester", Role: requestctx.RoleMember},
}

// Run seeds the cluster with demo users, a team, and tasks.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	c := &client{http: http.DefaultClient, out: out, verbose: cfg.Verbose}

	// The bootstrap admin account is created under self-asserted admin
	// headers; the services trust role assertions the way they trust a
	// gateway's.
	bootstrap := caller{ID: "seed-bootstrap", Role: requestctx.RoleAdmin}

	users := make(map[string]seededUser, len(demoUsers))
	for _, spec := range demoUsers {
		var created seededUser
		err := c.postJSON(ctx, cfg.UserBaseURL+"/users", bootstrap, map[string]any{
			"username":   spec.Username,
			"first_name": spec.FirstName,
			"last_name":  spec.LastName,
			"role":       string(spec.Role),
		}, &created)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", spec.Username, err)
		}
		users[spec.Username] = created
		c.logf("created user %s (%s)", created.Username, created.ID)
	}

	admin := caller{ID: users["admin"].ID, Role: requestctx.RoleAdmin}
	leader := caller{ID: users["lead"].ID, Role: requestctx.RoleTeamLeader}
	dev := caller{ID: users["dev"].ID, Role: requestctx.RoleMember}

	var devTeam seededTeam
	err := c.postJSON(ctx, cfg.TeamBaseURL+"/teams", admin, map[string]any{
		"name":        "Development Team",
		"description": "Builds and ships the product",
		"leader_id":   users["lead"].ID,
		"member_ids":  []string{users["lead"].ID, users["dev"].ID, users["qa"].ID},
	}, &devTeam)
	if err != nil {
		return fmt.Errorf("seed team: %w", err)
	}
	c.logf("created team %s (%s)", devTeam.Name, devTeam.ID)

	taskSpecs := []map[string]any{
		{
			"title":       "Design the task data model",
			"description": "Tables for tasks, comments, and attachments",
			"team_id":     devTeam.ID,
			"status":      "DONE",
			"priority":    "HIGH",
			"assigned_to": users["lead"].ID,
		},
		{
			"title":       "Implement the aggregator",
			"description": "Compose task views from the directories",
			"team_id":     devTeam.ID,
			"status":      "IN_PROGRESS",
			"priority":    "HIGH",
			"assigned_to": users["dev"].ID,
		},
		{
			"title":    "Write the smoke tests",
			"team_id":  devTeam.ID,
			"priority": "MEDIUM",
		},
	}

	var tasks []seededTask
	for _, spec := range taskSpecs {
		var created seededTask
		if err := c.postJSON(ctx, cfg.TaskBaseURL+"/tasks", leader, spec, &created); err != nil {
			return fmt.Errorf("seed task %q: %w", spec["title"], err)
		}
		tasks = append(tasks, created)
		c.logf("created task %s (%s)", created.Title, created.ID)
	}

	err = c.postJSON(ctx, cfg.TaskBaseURL+"/tasks/"+tasks[1].ID+"/comments", dev,
		map[string]any{"content": "Batched directory lookups are in, wiring the views next."}, nil)
	if err != nil {
		return fmt.Errorf("seed comment: %w", err)
	}
	c.logf("created comment on task %s", tasks[1].ID)

	fmt.Fprintf(out, "seeded %d users, 1 team, %d tasks\n", len(demoUsers), len(tasks))
	return nil
}

// RunCommand executes the seed command with telemetry wiring.
func RunCommand(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(context.Context) error {
		return Run(ctx, cfg, out)
	})
}
