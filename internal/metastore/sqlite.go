package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docweaver/internal/fragment"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed metadata store.
// Use ":memory:" for an in-memory database, or a file path for persistence.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		edit_version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		target_fragment_id TEXT,
		is_latest_edit INTEGER NOT NULL DEFAULT 1,
		original_fragment_id TEXT,
		relationships TEXT,
		document_key TEXT NOT NULL,
		model_slug TEXT,
		attempt INTEGER NOT NULL DEFAULT 0,
		storage_bucket TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		raw_path TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fragments_session_iter ON fragments(session_id, iteration);
	CREATE INDEX IF NOT EXISTS idx_fragments_stage ON fragments(stage);
	CREATE INDEX IF NOT EXISTS idx_fragments_created ON fragments(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const fragmentColumns = `id, project_id, session_id, stage, iteration, edit_version, created_at,
	target_fragment_id, is_latest_edit, original_fragment_id, relationships,
	document_key, model_slug, attempt, storage_bucket, storage_path, file_name, raw_path`

// Insert appends a new fragment row.
func (s *SQLiteStore) Insert(ctx context.Context, f *fragment.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	relJSON, err := marshalRelationships(f.Relationships)
	if err != nil {
		return err
	}

	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fragments (`+fragmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, f.SessionID, fragment.StageKey(f.Stage), f.Iteration, f.EditVersion, createdAt.UnixNano(),
		nullable(f.TargetID), boolToInt(f.IsLatestEdit), nullable(f.OriginalID), relJSON,
		f.DocumentKey, f.ModelSlug, f.Attempt, f.StorageBucket, f.StoragePath, f.FileName, f.RawPath,
	)
	if err != nil {
		return fmt.Errorf("insert fragment %s: %w", f.ID, err)
	}
	return nil
}

// Get returns one fragment by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*fragment.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments WHERE id = ?`, id)
	f, err := scanFragment(row)
	if err == sql.ErrNoRows {
		return nil, ErrFragmentNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get fragment %s: %w", id, err)
	}
	return f, nil
}

// ListChain returns all fragments of one document in (edit_version,
// created_at) order. The containment predicate on the relationships map is
// evaluated database-side via json_extract, keyed by the upper-cased stage
// name, so fragments of other documents never leave the store.
func (s *SQLiteStore) ListChain(ctx context.Context, q ChainQuery) ([]*fragment.Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fragmentColumns+` FROM fragments
		 WHERE session_id = ?
		   AND iteration = ?
		   AND json_extract(relationships, '$.' || ?) = ?
		 ORDER BY edit_version ASC, created_at ASC, id ASC`,
		q.SessionID, q.Iteration, fragment.StageKey(q.Stage), q.Identity,
	)
	if err != nil {
		return nil, fmt.Errorf("query fragment chain: %w", err)
	}
	defer rows.Close()

	var out []*fragment.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// UpdateRelationships replaces a fragment's relationships map and reads the
// persisted value back.
func (s *SQLiteStore) UpdateRelationships(ctx context.Context, id string, rel fragment.Relationships) (fragment.Relationships, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	relJSON, err := marshalRelationships(rel)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE fragments SET relationships = ? WHERE id = ?`, relJSON, id)
	if err != nil {
		return nil, fmt.Errorf("update relationships for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrFragmentNotFound{ID: id}
	}

	var persisted sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT relationships FROM fragments WHERE id = ?`, id).Scan(&persisted); err != nil {
		return nil, fmt.Errorf("read back relationships for %s: %w", id, err)
	}
	return unmarshalRelationships(persisted)
}

// MarkSuperseded flips is_latest_edit to false.
func (s *SQLiteStore) MarkSuperseded(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE fragments SET is_latest_edit = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark fragment %s superseded: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrFragmentNotFound{ID: id}
	}
	return nil
}

// ListActiveSince returns one entry per document with fragment writes at or
// after the given time. The document identity is read from the row's own
// relationships entry, so rows that never completed identity bookkeeping are
// skipped.
func (s *SQLiteStore) ListActiveSince(ctx context.Context, since time.Time) ([]DocumentActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, session_id, iteration, stage, document_key,
		        json_extract(relationships, '$.' || upper(stage)) AS identity,
		        MAX(created_at) AS last_created
		 FROM fragments
		 WHERE created_at >= ?
		 GROUP BY project_id, session_id, iteration, stage, document_key, identity
		 ORDER BY last_created ASC`,
		since.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query active documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentActivity
	for rows.Next() {
		var (
			act      DocumentActivity
			identity sql.NullString
			lastNano int64
		)
		if err := rows.Scan(&act.ProjectID, &act.Ref.SessionID, &act.Ref.Iteration, &act.Ref.Stage,
			&act.Ref.Key, &identity, &lastNano); err != nil {
			return nil, fmt.Errorf("scan document activity: %w", err)
		}
		if !identity.Valid || identity.String == "" {
			continue
		}
		act.Ref.Identity = identity.String
		act.LastRecord = time.Unix(0, lastNano)
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFragment(row scanner) (*fragment.Fragment, error) {
	var (
		f           fragment.Fragment
		createdNano int64
		target      sql.NullString
		latest      int
		original    sql.NullString
		rel         sql.NullString
	)
	err := row.Scan(&f.ID, &f.ProjectID, &f.SessionID, &f.Stage, &f.Iteration, &f.EditVersion, &createdNano,
		&target, &latest, &original, &rel,
		&f.DocumentKey, &f.ModelSlug, &f.Attempt, &f.StorageBucket, &f.StoragePath, &f.FileName, &f.RawPath)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = time.Unix(0, createdNano)
	f.TargetID = target.String
	f.IsLatestEdit = latest != 0
	f.OriginalID = original.String
	f.Relationships, err = unmarshalRelationships(rel)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func marshalRelationships(rel fragment.Relationships) (sql.NullString, error) {
	if rel == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(rel)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal relationships: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalRelationships(raw sql.NullString) (fragment.Relationships, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var rel fragment.Relationships
	if err := json.Unmarshal([]byte(raw.String), &rel); err != nil {
		return nil, fmt.Errorf("unmarshal relationships: %w", err)
	}
	return rel, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
