package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding sessions and their turns.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "agrovoice.db")
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

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
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

// --- Sessions ---

// CreateSession inserts a new empty session. Language defaults to "en" when blank.
func (s *Store) CreateSession(id, language string) (Session, error) {
	if language == "" {
		language = "en"
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, title, language, created_at, updated_at)
		VALUES (?, '', ?, ?, ?)`,
		id, language, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: id, Language: language, CreatedAt: now, UpdatedAt: now}, nil
}

// GetSession returns the session with the given id.
func (s *Store) GetSession(id string) (Session, error) {
	var sess Session
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT s.id, s.title, s.language, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s WHERE s.id = ?`, id,
	).Scan(&sess.ID, &sess.Title, &sess.Language, &createdAt, &updatedAt, &sess.TurnCount)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if sess.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Session{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Session{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return sess, nil
}

// ListSessions returns sessions newest-first for the history selector.
func (s *Store) ListSessions(limit, offset int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.title, s.language, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		FROM sessions s ORDER BY s.updated_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Session
	for rows.Next() {
		var sess Session
		var createdAt, updatedAt string
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Language, &createdAt, &updatedAt, &sess.TurnCount); err != nil {
			return nil, err
		}
		if sess.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if sess.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, sess)
	}
	return results, rows.Err()
}

// UpdateSessionLanguage records the most recently detected input language.
func (s *Store) UpdateSessionLanguage(id, language string) error {
	res, err := s.db.Exec(`UPDATE sessions SET language = ?, updated_at = ? WHERE id = ?`,
		language, time.Now().UTC().Format(time.RFC3339), id)
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

// DeleteSession removes a session and, via cascade, its turns.
func (s *Store) DeleteSession(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
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

// --- Turns ---

// AppendTurn appends a turn to its session, assigning the next sequence
// number. The first user turn also freezes the session title.
func (s *Store) AppendTurn(t Turn) (Turn, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Turn{}, fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	var title string
	err = tx.QueryRow(`SELECT title FROM sessions WHERE id = ?`, t.SessionID).Scan(&title)
	if err == sql.ErrNoRows {
		return Turn{}, ErrNotFound
	}
	if err != nil {
		return Turn{}, err
	}

	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`, t.SessionID).Scan(&t.Seq); err != nil {
		return Turn{}, fmt.Errorf("assigning sequence: %w", err)
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	_, err = tx.Exec(`
		INSERT INTO turns (id, session_id, seq, role, modality, intent, content, media_ref, audio_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.Seq, t.Role, t.Modality, t.Intent, t.Content, t.MediaRef, t.AudioRef,
		now.Format(time.RFC3339),
	)
	if err != nil {
		return Turn{}, fmt.Errorf("inserting turn: %w", err)
	}

	if title == "" && t.Role == RoleUser {
		title = DeriveTitle(t.Content)
		if _, err := tx.Exec(`UPDATE sessions SET title = ? WHERE id = ?`, title, t.SessionID); err != nil {
			return Turn{}, fmt.Errorf("setting session title: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, now.Format(time.RFC3339), t.SessionID); err != nil {
		return Turn{}, fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Turn{}, fmt.Errorf("committing append: %w", err)
	}
	return t, nil
}

// ListTurns returns all turns of a session in arrival order.
func (s *Store) ListTurns(sessionID string) ([]Turn, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, seq, role, modality, intent, content, media_ref, audio_ref, created_at
		FROM turns WHERE session_id = ? ORDER BY seq ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Turn
	for rows.Next() {
		var t Turn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.Role, &t.Modality, &t.Intent, &t.Content, &t.MediaRef, &t.AudioRef, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// RecentTurns returns the last n turns of a session in arrival order.
func (s *Store) RecentTurns(sessionID string, n int) ([]Turn, error) {
	turns, err := s.ListTurns(sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

// --- Maintenance ---

// PruneSessions deletes sessions whose last activity predates maxAge and,
// after that, the oldest sessions beyond maxSessions. Returns the number of
// sessions removed. A non-positive limit disables the corresponding rule.
func (s *Store) PruneSessions(maxAge time.Duration, maxSessions int) (int, error) {
	removed := 0

	if maxAge > 0 {
		cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
		res, err := s.db.Exec(`DELETE FROM sessions WHERE updated_at < ?`, cutoff)
		if err != nil {
			return removed, fmt.Errorf("pruning by age: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}

	if maxSessions > 0 {
		res, err := s.db.Exec(`
			DELETE FROM sessions WHERE id NOT IN (
				SELECT id FROM sessions ORDER BY updated_at DESC LIMIT ?
			)`, maxSessions)
		if err != nil {
			return removed, fmt.Errorf("pruning by count: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}

	return removed, nil
}

// GetStats returns aggregate counts over all sessions.
func (s *Store) GetStats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&st.TotalSessions); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&st.TotalTurns); err != nil {
		return Stats{}, err
	}

	var oldest, newest sql.NullString
	if err := s.db.QueryRow(`SELECT MIN(created_at), MAX(created_at) FROM sessions`).Scan(&oldest, &newest); err != nil {
		return Stats{}, err
	}
	if oldest.Valid {
		t, err := time.Parse(time.RFC3339, oldest.String)
		if err != nil {
			return Stats{}, fmt.Errorf("parsing oldest session time: %w", err)
		}
		st.OldestSession = &t
	}
	if newest.Valid {
		t, err := time.Parse(time.RFC3339, newest.String)
		if err != nil {
			return Stats{}, fmt.Errorf("parsing newest session time: %w", err)
		}
		st.NewestSession = &t
	}
	return st, nil
}

var titleStripRe = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
var titleSpaceRe = regexp.MustCompile(`[\s_]+`)

const maxTitleLength = 30

// DeriveTitle turns the first user message into a short display name.
// Empty or unusable input yields "chat".
func DeriveTitle(firstMessage string) string {
	t := titleStripRe.ReplaceAllString(firstMessage, "")
	t = strings.ToLower(strings.TrimSpace(t))
	t = titleSpaceRe.ReplaceAllString(t, " ")
	if r := []rune(t); len(r) > maxTitleLength {
		t = strings.TrimSpace(string(r[:maxTitleLength]))
	}
	if t == "" {
		return "chat"
	}
	return t
}
