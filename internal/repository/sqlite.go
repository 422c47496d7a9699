package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/planweave/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			title TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			active_version_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT NOT NULL,
			metadata TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_slug ON agents(slug)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_role ON agents(json_extract(metadata, '$.role'))`,
		`CREATE INDEX IF NOT EXISTS idx_agents_domains ON agents(json_extract(metadata, '$.domains'))`,
		`CREATE INDEX IF NOT EXISTS idx_agents_tags ON agents(json_extract(metadata, '$.tags'))`,
		`CREATE TABLE IF NOT EXISTS agent_versions (
			version_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			system_prompt TEXT NOT NULL,
			resources TEXT,
			io_schema TEXT,
			routing_hints TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by TEXT NOT NULL,
			FOREIGN KEY (agent_id) REFERENCES agents(agent_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_versions_agent_version ON agent_versions(agent_id, version DESC)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			agent_id TEXT,
			agent_version_id TEXT,
			status TEXT NOT NULL,
			parent_run_id TEXT,
			root_run_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			context TEXT,
			output TEXT,
			error TEXT,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_parent ON runs(parent_run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_root ON runs(root_run_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_run_seq ON events(run_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run_ts ON events(run_id, ts)`,
		`CREATE TABLE IF NOT EXISTS workflows (
			workflow_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			nodes TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession creates a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, title, created_at, metadata) VALUES (?, ?, ?, ?)`,
		session.SessionID, nullString(session.Title), session.CreatedAt, rawOrNull(session.Metadata))
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	var title, metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, title, created_at, metadata FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &title, &session.CreatedAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.Title = title.String
	if metadata.Valid {
		session.Metadata = json.RawMessage(metadata.String)
	}
	return &session, nil
}

// ListSessions lists the most recent sessions.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, title, created_at, metadata FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var session domain.Session
		var title, metadata sql.NullString
		if err := rows.Scan(&session.SessionID, &title, &session.CreatedAt, &metadata); err != nil {
			return nil, err
		}
		session.Title = title.String
		if metadata.Valid {
			session.Metadata = json.RawMessage(metadata.String)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// CreateAgent inserts a new agent. The unique slug index rejects duplicates.
func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *domain.Agent) error {
	metadata, err := json.Marshal(agent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal agent metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (agent_id, slug, name, description, active_version_id, created_at, updated_at, created_by, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agent.AgentID, agent.Slug, agent.Name, nullString(agent.Description), nullString(agent.ActiveVersionID),
		agent.CreatedAt, agent.UpdatedAt, agent.CreatedBy, string(metadata))
	return err
}

// UpdateAgent updates an agent's mutable fields.
func (s *SQLiteStore) UpdateAgent(ctx context.Context, agent *domain.Agent) error {
	metadata, err := json.Marshal(agent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal agent metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE agents SET name = ?, description = ?, active_version_id = ?, updated_at = ?, metadata = ? WHERE agent_id = ?`,
		agent.Name, nullString(agent.Description), nullString(agent.ActiveVersionID), agent.UpdatedAt, string(metadata), agent.AgentID)
	return err
}

const agentColumns = `agent_id, slug, name, description, active_version_id, created_at, updated_at, created_by, metadata`

func (s *SQLiteStore) scanAgent(row *sql.Row) (*domain.Agent, error) {
	var agent domain.Agent
	var description, activeVersionID, metadata sql.NullString
	err := row.Scan(&agent.AgentID, &agent.Slug, &agent.Name, &description, &activeVersionID,
		&agent.CreatedAt, &agent.UpdatedAt, &agent.CreatedBy, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	agent.Description = description.String
	agent.ActiveVersionID = activeVersionID.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &agent.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent metadata: %w", err)
		}
	}
	return &agent, nil
}

// GetAgent retrieves an agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE agent_id = ?`, agentID)
	return s.scanAgent(row)
}

// GetAgentBySlug retrieves an agent by its unique slug.
func (s *SQLiteStore) GetAgentBySlug(ctx context.Context, slug string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE slug = ?`, slug)
	return s.scanAgent(row)
}

// GetAgentByName retrieves an agent by case-insensitive exact name match.
func (s *SQLiteStore) GetAgentByName(ctx context.Context, name string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE LOWER(name) = LOWER(?) LIMIT 1`, name)
	return s.scanAgent(row)
}

// ListAgents lists all agents in creation order.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents ORDER BY created_at, agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var agent domain.Agent
		var description, activeVersionID, metadata sql.NullString
		if err := rows.Scan(&agent.AgentID, &agent.Slug, &agent.Name, &description, &activeVersionID,
			&agent.CreatedAt, &agent.UpdatedAt, &agent.CreatedBy, &metadata); err != nil {
			return nil, err
		}
		agent.Description = description.String
		agent.ActiveVersionID = activeVersionID.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &agent.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal agent metadata: %w", err)
			}
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// CreateAgentVersion inserts a new immutable agent version. The unique
// (agent_id, version) index rejects duplicates.
func (s *SQLiteStore) CreateAgentVersion(ctx context.Context, version *domain.AgentVersion) error {
	var hints []byte
	if version.RoutingHints != nil {
		var err error
		hints, err = json.Marshal(version.RoutingHints)
		if err != nil {
			return fmt.Errorf("failed to marshal routing hints: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_versions (version_id, agent_id, version, system_prompt, resources, io_schema, routing_hints, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		version.VersionID, version.AgentID, version.Version, version.SystemPrompt,
		rawOrNull(version.Resources), rawOrNull(version.IOSchema), nullStringBytes(hints),
		version.CreatedAt, version.CreatedBy)
	return err
}

const versionColumns = `version_id, agent_id, version, system_prompt, resources, io_schema, routing_hints, created_at, created_by`

func scanVersion(scan func(dest ...interface{}) error) (*domain.AgentVersion, error) {
	var v domain.AgentVersion
	var resources, ioSchema, hints sql.NullString
	err := scan(&v.VersionID, &v.AgentID, &v.Version, &v.SystemPrompt, &resources, &ioSchema, &hints, &v.CreatedAt, &v.CreatedBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resources.Valid {
		v.Resources = json.RawMessage(resources.String)
	}
	if ioSchema.Valid {
		v.IOSchema = json.RawMessage(ioSchema.String)
	}
	if hints.Valid && hints.String != "" {
		v.RoutingHints = &domain.RoutingHints{}
		if err := json.Unmarshal([]byte(hints.String), v.RoutingHints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal routing hints: %w", err)
		}
	}
	return &v, nil
}

// GetAgentVersion retrieves a version by ID.
func (s *SQLiteStore) GetAgentVersion(ctx context.Context, versionID string) (*domain.AgentVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM agent_versions WHERE version_id = ?`, versionID)
	return scanVersion(row.Scan)
}

// GetLatestAgentVersion retrieves the highest-numbered version of an agent.
func (s *SQLiteStore) GetLatestAgentVersion(ctx context.Context, agentID string) (*domain.AgentVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM agent_versions WHERE agent_id = ? ORDER BY version DESC LIMIT 1`, agentID)
	return scanVersion(row.Scan)
}

// ListAgentVersions lists an agent's versions in ascending order.
func (s *SQLiteStore) ListAgentVersions(ctx context.Context, agentID string) ([]domain.AgentVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM agent_versions WHERE agent_id = ? ORDER BY version ASC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []domain.AgentVersion
	for rows.Next() {
		v, err := scanVersion(rows.Scan)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session_id, agent_id, agent_version_id, status, parent_run_id, root_run_id, user_message, context, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.SessionID, nullString(run.AgentID), nullString(run.AgentVersionID), run.Status,
		nullString(run.ParentRunID), run.RootRunID, run.Input.UserMessage, rawOrNull(run.Input.Context), run.StartedAt)
	return err
}

const runColumns = `run_id, session_id, agent_id, agent_version_id, status, parent_run_id, root_run_id, user_message, context, output, error, started_at, ended_at`

func scanRun(scan func(dest ...interface{}) error) (*domain.Run, error) {
	var run domain.Run
	var agentID, versionID, parentRunID, contextDoc, output, errDoc sql.NullString
	var endedAt sql.NullTime
	err := scan(&run.RunID, &run.SessionID, &agentID, &versionID, &run.Status, &parentRunID, &run.RootRunID,
		&run.Input.UserMessage, &contextDoc, &output, &errDoc, &run.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.AgentID = agentID.String
	run.AgentVersionID = versionID.String
	run.ParentRunID = parentRunID.String
	if contextDoc.Valid {
		run.Input.Context = json.RawMessage(contextDoc.String)
	}
	if output.Valid && output.String != "" {
		run.Output = &domain.RunOutput{Result: json.RawMessage(output.String)}
	}
	if errDoc.Valid && errDoc.String != "" {
		run.Error = &domain.RunError{}
		if err := json.Unmarshal([]byte(errDoc.String), run.Error); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run error: %w", err)
		}
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	return scanRun(row.Scan)
}

// UpdateRunSucceeded marks a run succeeded and stores its output.
func (s *SQLiteStore) UpdateRunSucceeded(ctx context.Context, runID string, output *domain.RunOutput) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, output = ?, ended_at = ? WHERE run_id = ?`,
		domain.RunStatusSucceeded, string(output.Result), time.Now(), runID)
	return err
}

// UpdateRunFailed marks a run failed and stores its error document.
func (s *SQLiteStore) UpdateRunFailed(ctx context.Context, runID string, runErr *domain.RunError) error {
	errDoc, err := json.Marshal(runErr)
	if err != nil {
		return fmt.Errorf("failed to marshal run error: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, ended_at = ? WHERE run_id = ?`,
		domain.RunStatusFailed, string(errDoc), time.Now(), runID)
	return err
}

// ListRunsBySession lists a session's runs in start order.
func (s *SQLiteStore) ListRunsBySession(ctx context.Context, sessionID string) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE session_id = ? ORDER BY started_at, run_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CountRunsByRoot counts all runs sharing a root, the root included.
func (s *SQLiteStore) CountRunsByRoot(ctx context.Context, rootRunID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE root_run_id = ?`, rootRunID).Scan(&count)
	return count, err
}

// CreateEvent appends an event. The unique (run_id, seq) index is the
// authoritative ordering invariant; a duplicate-key error signals a protocol bug.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, seq, ts, type, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Seq, event.Ts, event.Type, payload)
	return err
}

// MaxEventSeq returns the highest seq recorded for a run, 0 when none.
func (s *SQLiteStore) MaxEventSeq(ctx context.Context, runID string) (int64, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM events WHERE run_id = ?`, runID).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max.Int64, nil
}

// GetEventsSince retrieves a run's events with seq > sinceSeq in seq order.
func (s *SQLiteStore) GetEventsSince(ctx context.Context, runID string, sinceSeq int64) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, run_id, seq, ts, type, payload FROM events WHERE run_id = ? AND seq > ? ORDER BY seq ASC`,
		runID, sinceSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Seq, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// SaveWorkflow creates or replaces a workflow.
func (s *SQLiteStore) SaveWorkflow(ctx context.Context, workflow *domain.Workflow) error {
	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow nodes: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO workflows (workflow_id, name, description, nodes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		workflow.WorkflowID, workflow.Name, nullString(workflow.Description), string(nodes),
		workflow.CreatedAt, workflow.UpdatedAt)
	return err
}

// GetWorkflow retrieves a workflow by ID.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, workflowID string) (*domain.Workflow, error) {
	var wf domain.Workflow
	var description sql.NullString
	var nodes string
	err := s.db.QueryRowContext(ctx,
		`SELECT workflow_id, name, description, nodes, created_at, updated_at FROM workflows WHERE workflow_id = ?`,
		workflowID).Scan(&wf.WorkflowID, &wf.Name, &description, &nodes, &wf.CreatedAt, &wf.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	wf.Description = description.String
	if err := json.Unmarshal([]byte(nodes), &wf.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow nodes: %w", err)
	}
	return &wf, nil
}

// ListWorkflows lists all workflows.
func (s *SQLiteStore) ListWorkflows(ctx context.Context) ([]domain.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workflow_id, name, description, nodes, created_at, updated_at FROM workflows ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		var wf domain.Workflow
		var description sql.NullString
		var nodes string
		if err := rows.Scan(&wf.WorkflowID, &wf.Name, &description, &nodes, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, err
		}
		wf.Description = description.String
		if err := json.Unmarshal([]byte(nodes), &wf.Nodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow nodes: %w", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

// DeleteWorkflow removes a workflow.
func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, workflowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE workflow_id = ?`, workflowID)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func rawOrNull(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
