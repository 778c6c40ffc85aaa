package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for messages, plans,
// turns, and reference docs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "coach.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Messages ---

const messageColumns = "id, session_date, role, content, rich_json, meta_json, created_at"

// AppendMessage writes a message. Messages are immutable once written.
func (s *Store) AppendMessage(m Message) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionDate, m.Role, m.Content, m.RichJSON, m.MetaJSON,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// RecentMessages returns the last limit messages across all sessions,
// in ascending timestamp order.
func (s *Store) RecentMessages(limit int) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	// Reverse into ascending order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MessagesByDate returns all messages of one session day, ascending.
func (s *Store) MessagesByDate(date string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE session_date = ? ORDER BY created_at ASC, rowid ASC`, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// AllMessages returns the full history in ascending timestamp order.
func (s *Store) AllMessages() ([]Message, error) {
	rows, err := s.db.Query(`SELECT ` + messageColumns + ` FROM messages ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// SessionDates returns the distinct session dates, ascending.
func (s *Store) SessionDates() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT session_date FROM messages ORDER BY session_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionDate, &m.Role, &m.Content, &m.RichJSON, &m.MetaJSON, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- Plans ---

// SavePlan inserts a plan. Status defaults to active.
func (s *Store) SavePlan(p Plan) error {
	status := p.Status
	if status == "" {
		status = PlanActive
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO plans (id, type, name, details, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Type, p.Name, p.Details, status, createdAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ActivePlans returns plans with status active, newest first.
func (s *Store) ActivePlans() ([]Plan, error) {
	rows, err := s.db.Query(`
		SELECT id, type, name, details, status, created_at FROM plans
		WHERE status = ? ORDER BY created_at DESC, rowid DESC`, PlanActive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlans(rows)
}

// SetPlanStatus updates a plan's status.
func (s *Store) SetPlanStatus(id, status string) error {
	res, err := s.db.Exec(`UPDATE plans SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SupersedePlansOfType marks all active plans of planType superseded.
// Returns the number of plans affected.
func (s *Store) SupersedePlansOfType(planType string) (int, error) {
	res, err := s.db.Exec(`UPDATE plans SET status = ? WHERE type = ? AND status = ?`,
		PlanSuperseded, planType, PlanActive)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanPlans(rows *sql.Rows) ([]Plan, error) {
	var results []Plan
	for rows.Next() {
		var p Plan
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Type, &p.Name, &p.Details, &p.Status, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		p.CreatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Turns ---

func (s *Store) SaveTurn(t Turn) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	fallback := 0
	if t.Fallback {
		fallback = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO turns (id, created_at, user_message, prompt, response, persona, duration_ms, tokens_used, confidence, fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, createdAt.UTC().Format(time.RFC3339Nano), t.UserMessage, t.Prompt,
		t.Response, t.Persona, t.DurationMs, t.TokensUsed, t.Confidence, fallback,
	)
	return err
}

func (s *Store) RecentTurns(limit int) ([]Turn, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, user_message, prompt, response, persona, duration_ms, tokens_used, confidence, fallback
		FROM turns ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Turn
	for rows.Next() {
		var t Turn
		var createdAt string
		var fallback int
		if err := rows.Scan(&t.ID, &createdAt, &t.UserMessage, &t.Prompt, &t.Response, &t.Persona, &t.DurationMs, &t.TokensUsed, &t.Confidence, &fallback); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		t.CreatedAt = ts
		t.Fallback = fallback != 0
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Docs ---

func (s *Store) SaveDoc(d Doc) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	tags := d.Tags
	if tags == "" {
		tags = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO docs (id, title, content, source, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Content, d.Source, tags, createdAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) GetDoc(id string) (Doc, error) {
	var d Doc
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, content, source, tags, created_at FROM docs WHERE id = ?`, id,
	).Scan(&d.ID, &d.Title, &d.Content, &d.Source, &d.Tags, &createdAt)
	if err == sql.ErrNoRows {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Doc{}, fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}

func (s *Store) ListDocs(limit int) ([]Doc, error) {
	rows, err := s.db.Query(`
		SELECT id, title, content, source, tags, created_at FROM docs
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Doc
	for rows.Next() {
		var d Doc
		var createdAt string
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Source, &d.Tags, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		d.CreatedAt = t
		results = append(results, d)
	}
	return results, rows.Err()
}
