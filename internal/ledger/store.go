package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store records publications in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Fingerprint hashes a queue record's raw fields. Identical lines map to the
// same fingerprint so a retried head finds its earlier entry.
func Fingerprint(fields []string) string {
	h := sha256.New()
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the newest open entry for fingerprint, or nil. Committed
// and superseded entries are closed.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM publications
         WHERE fingerprint = ? AND state NOT IN (?, ?)
         ORDER BY id DESC LIMIT 1`,
		fingerprint, StateCommitted, StateSuperseded,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return entry, nil
}

// Begin returns the open entry for the intent's fingerprint, reusing its
// idempotency key, or inserts a new pending entry. A reused entry takes the
// intent's queue revision.
func (s *Store) Begin(ctx context.Context, intent Intent) (*Entry, error) {
	if strings.TrimSpace(intent.Fingerprint) == "" {
		return nil, errors.New("ledger begin: fingerprint required")
	}
	existing, err := s.Lookup(ctx, intent.Fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.QueueRevision != intent.QueueRevision {
			ts := time.Now().UTC().Format(time.RFC3339Nano)
			err := s.update(ctx, existing.ID,
				`UPDATE publications SET queue_revision = ?, updated_at = ? WHERE id = ?`,
				intent.QueueRevision, ts, existing.ID,
			)
			if err != nil {
				return nil, err
			}
			existing.QueueRevision = intent.QueueRevision
		}
		return existing, nil
	}

	now := time.Now().UTC()
	ts := now.Format(time.RFC3339Nano)
	key := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO publications (
            fingerprint, media_ref, caption, idempotency_key, queue_revision, state, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		intent.Fingerprint, intent.MediaRef, intent.Caption, key, intent.QueueRevision, StatePending, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert publication: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("publication id: %w", err)
	}
	return &Entry{
		ID:             id,
		Fingerprint:    intent.Fingerprint,
		MediaRef:       intent.MediaRef,
		Caption:        intent.Caption,
		IdempotencyKey: key,
		QueueRevision:  intent.QueueRevision,
		State:          StatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MarkPublished records the remote receipt for an entry.
func (s *Store) MarkPublished(ctx context.Context, id int64, receipt Receipt) error {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	return s.update(ctx, id,
		`UPDATE publications
         SET state = ?, media_id = ?, status_id = ?, status_url = ?, published_at = ?, updated_at = ?
         WHERE id = ?`,
		StatePublished, receipt.MediaID, receipt.StatusID, receipt.StatusURL, ts, ts, id,
	)
}

// MarkCommitted records that the queue was advanced past the entry.
func (s *Store) MarkCommitted(ctx context.Context, id int64) error {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	return s.update(ctx, id,
		`UPDATE publications SET state = ?, committed_at = ?, updated_at = ? WHERE id = ?`,
		StateCommitted, ts, ts, id,
	)
}

// MarkSuperseded closes an entry that can no longer be matched to the queue
// file it was published from.
func (s *Store) MarkSuperseded(ctx context.Context, id int64) error {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	return s.update(ctx, id,
		`UPDATE publications SET state = ?, updated_at = ? WHERE id = ?`,
		StateSuperseded, ts, id,
	)
}

func (s *Store) update(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update publication %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update publication %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update publication %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM publications ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query publications: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

const entryColumns = `id, fingerprint, media_ref, caption, idempotency_key, queue_revision, state,
    media_id, status_id, status_url, created_at, updated_at, published_at, committed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                    Entry
		state                string
		created, updated     string
		published, committed sql.NullString
	)
	if err := row.Scan(
		&e.ID, &e.Fingerprint, &e.MediaRef, &e.Caption, &e.IdempotencyKey, &e.QueueRevision, &state,
		&e.MediaID, &e.StatusID, &e.StatusURL, &created, &updated, &published, &committed,
	); err != nil {
		return nil, err
	}
	e.State = State(state)
	e.CreatedAt = parseTime(created)
	e.UpdatedAt = parseTime(updated)
	if published.Valid {
		e.PublishedAt = parseTime(published.String)
	}
	if committed.Valid {
		e.CommittedAt = parseTime(committed.String)
	}
	return &e, nil
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
