package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for the clinic domain:
// knowledge documents and chunks, contacts, conversations, messages,
// and the background job queue.
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
		dsn = filepath.Join(dataDir, "aura.db")
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

	// Chunks cascade on document deletion.
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

// DB exposes the underlying handle for components that share the database,
// such as the vector search in the retrieval package.
func (s *Store) DB() *sql.DB {
	return s.db
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

		// Check if already applied.
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

// --- Clinics ---

// EnsureClinic creates the clinic row if it does not exist yet. Idempotent.
func (s *Store) EnsureClinic(id, name string) error {
	_, err := s.db.Exec(`
		INSERT INTO clinics (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		id, name, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// --- Knowledge documents and chunks ---

// SaveDocument persists a document and all of its chunks in one transaction.
// Either everything is written or nothing is.
func (s *Store) SaveDocument(doc Document, chunks []Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning ingest transaction: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO knowledge_docs (id, clinic_id, title, source_uri, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.ClinicID, doc.Title, doc.SourceURI,
		doc.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO knowledge_chunks (id, doc_id, clinic_id, content, embedding, model, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		metadata := c.MetadataJSON
		if metadata == "" {
			metadata = "{}"
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = doc.CreatedAt
		}
		if _, err := stmt.Exec(c.ID, c.DocumentID, c.ClinicID, c.Content, c.Embedding, c.Model,
			metadata, createdAt.UTC().Format(time.RFC3339)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetDocument(id string) (Document, error) {
	var d Document
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, clinic_id, title, source_uri, created_at
		FROM knowledge_docs WHERE id = ?`, id,
	).Scan(&d.ID, &d.ClinicID, &d.Title, &d.SourceURI, &createdAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}

func (s *Store) ListDocuments(clinicID string, limit int) ([]Document, error) {
	rows, err := s.db.Query(`
		SELECT id, clinic_id, title, source_uri, created_at
		FROM knowledge_docs WHERE clinic_id = ? ORDER BY created_at DESC LIMIT ?`,
		clinicID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		var createdAt string
		if err := rows.Scan(&d.ID, &d.ClinicID, &d.Title, &d.SourceURI, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		d.CreatedAt = t
		results = append(results, d)
	}
	return results, rows.Err()
}

// DeleteDocument removes a document; its chunks go with it via the
// ON DELETE CASCADE foreign key.
func (s *Store) DeleteDocument(id string) error {
	res, err := s.db.Exec("DELETE FROM knowledge_docs WHERE id = ?", id)
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

// CountChunks returns the number of knowledge chunks stored for a clinic.
func (s *Store) CountChunks(clinicID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM knowledge_chunks WHERE clinic_id = ?", clinicID).Scan(&count)
	return count, err
}

// --- Contacts and conversations ---

func (s *Store) CreateContact(c Contact) error {
	_, err := s.db.Exec(`
		INSERT INTO contacts (id, clinic_id, name, phone, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ClinicID, c.Name, c.Phone, c.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) CreateConversation(cv Conversation) error {
	_, err := s.db.Exec(`
		INSERT INTO conversations (id, clinic_id, contact_id, channel, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		cv.ID, cv.ClinicID, cv.ContactID, cv.Channel, cv.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// LatestConversation returns the id of the most recent conversation for a
// contact phone on the given channel, or ErrNotFound when the contact has
// never written on it.
func (s *Store) LatestConversation(clinicID, phone, channel string) (string, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT cv.id FROM conversations cv
		JOIN contacts c ON c.id = cv.contact_id
		WHERE cv.clinic_id = ? AND c.phone = ? AND cv.channel = ?
		ORDER BY cv.created_at DESC, cv.id DESC
		LIMIT 1`, clinicID, phone, channel,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetConversation(id string) (Conversation, error) {
	var cv Conversation
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, clinic_id, contact_id, channel, created_at
		FROM conversations WHERE id = ?`, id,
	).Scan(&cv.ID, &cv.ClinicID, &cv.ContactID, &cv.Channel, &createdAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	cv.CreatedAt = t
	return cv, nil
}

// --- Messages ---

// AppendMessage writes one message row. Messages are never updated or deleted.
func (s *Store) AppendMessage(m Message) error {
	payload := m.PayloadJSON
	if payload == "" {
		payload = "{}"
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, conversation_id, clinic_id, direction, sender, text, intent, tool_called, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.ClinicID, m.Direction, m.Sender, m.Text,
		nullable(m.Intent), nullable(m.ToolCalled), payload,
		createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListMessages(conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, clinic_id, direction, sender, text, intent, tool_called, payload_json, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var intent, tool sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.ClinicID, &m.Direction, &m.Sender,
			&m.Text, &intent, &tool, &m.PayloadJSON, &createdAt); err != nil {
			return nil, err
		}
		m.Intent = intent.String
		m.ToolCalled = tool.String
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- Jobs ---

// EnqueueJob inserts a pending job. When the job carries a dedup key and a
// job with the same key already exists, ErrDuplicateJob is returned and
// nothing is written.
func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	res, err := s.db.Exec(`
		INSERT INTO jobs (id, type, dedup_key, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', 0, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`,
		job.ID, job.Type, nullable(job.DedupKey), job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateJob
	}
	return nil
}

// ClaimNextJob atomically claims the oldest runnable pending job of the given
// types, marking it running. Returns nil when no job is ready.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT id, type, dedup_key, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]interface{}, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var j Job
	var dedupKey, lastError sql.NullString
	var runAfter, createdAt, updatedAt string
	err = tx.QueryRow(query, args...).Scan(
		&j.ID, &j.Type, &dedupKey, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.DedupKey = dedupKey.String
	j.LastError = lastError.String
	if j.RunAfter, err = time.Parse(time.RFC3339, runAfter); err != nil {
		return nil, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, now); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return &j, nil
}

func (s *Store) CompleteJob(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now, id)
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

// FailJob records a failure. The job is retried with exponential backoff
// until max_attempts is reached, then marked failed for good.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(time.RFC3339), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		runAfter := now.Add(backoff)
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.Format(time.RFC3339), now.Format(time.RFC3339), id)
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}
