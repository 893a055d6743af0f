package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// SQLiteScratchpadStore implements ScratchpadStore on an embedded SQLite
// database. Each operation is a single statement.
type SQLiteScratchpadStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ScratchpadStore = (*SQLiteScratchpadStore)(nil)

// OpenSQLiteScratchpadStore opens or creates the database at path.
func OpenSQLiteScratchpadStore(path string) (*SQLiteScratchpadStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating scratchpad directory: %v", models.ErrStoreUnavailable, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening scratchpad database: %v", models.ErrStoreUnavailable, err)
	}

	_, err = db.Exec(`
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS scratchpad (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			scope_kind TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			consumed_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_scratchpad_scope ON scratchpad(scope_kind, project_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting up scratchpad database: %v", models.ErrStoreUnavailable, err)
	}

	return &SQLiteScratchpadStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteScratchpadStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func formatSeq(seq int64) string {
	return fmt.Sprintf("SP-%05d", seq)
}

func parseSeq(id string) (int64, bool) {
	digits, ok := strings.CutPrefix(id, "SP-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *SQLiteScratchpadStore) Write(scope models.ScratchpadScope, kind models.ScratchpadKind, content string) (models.ScratchpadEntry, error) {
	if err := models.ValidateScratchpadWrite(scope, kind, content); err != nil {
		return models.ScratchpadEntry{}, err
	}

	created := s.now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO scratchpad (scope_kind, project_id, kind, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(scope.Kind), scope.ProjectID, string(kind), content, created.UnixNano(),
	)
	if err != nil {
		return models.ScratchpadEntry{}, fmt.Errorf("%w: inserting scratchpad entry: %v", models.ErrStoreUnavailable, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return models.ScratchpadEntry{}, fmt.Errorf("%w: reading scratchpad id: %v", models.ErrStoreUnavailable, err)
	}

	return models.ScratchpadEntry{
		ID:        formatSeq(seq),
		Scope:     scope,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Unix(0, created.UnixNano()).UTC(),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.ScratchpadEntry, error) {
	var (
		seq               int64
		scopeKind, projID string
		kind, content     string
		created           int64
		consumed          sql.NullInt64
	)
	if err := row.Scan(&seq, &scopeKind, &projID, &kind, &content, &created, &consumed); err != nil {
		return models.ScratchpadEntry{}, err
	}
	e := models.ScratchpadEntry{
		ID:        formatSeq(seq),
		Scope:     models.ScratchpadScope{Kind: models.ScopeKind(scopeKind), ProjectID: projID},
		Kind:      models.ScratchpadKind(kind),
		Content:   content,
		CreatedAt: time.Unix(0, created).UTC(),
	}
	if consumed.Valid {
		at := time.Unix(0, consumed.Int64).UTC()
		e.ConsumedAt = &at
	}
	return e, nil
}

const selectEntry = `SELECT seq, scope_kind, project_id, kind, content, created_at, consumed_at FROM scratchpad`

// Read returns matching entries ordered by creation time, then id.
func (s *SQLiteScratchpadStore) Read(query models.ScratchpadQuery) ([]models.ScratchpadEntry, error) {
	var (
		where []string
		args  []any
	)
	if query.Scope != nil {
		where = append(where, "scope_kind = ?", "project_id = ?")
		args = append(args, string(query.Scope.Kind), query.Scope.ProjectID)
	}
	if query.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(query.Kind))
	}
	if !query.IncludeConsumed {
		where = append(where, "consumed_at IS NULL")
	}

	stmt := selectEntry
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY created_at, seq"

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying scratchpad: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	result := []models.ScratchpadEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning scratchpad row: %v", models.ErrStoreUnavailable, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating scratchpad rows: %v", models.ErrStoreUnavailable, err)
	}
	return result, nil
}

// Consume stamps consumed_at once; later calls leave it untouched.
func (s *SQLiteScratchpadStore) Consume(id string) (models.ScratchpadEntry, error) {
	seq, ok := parseSeq(id)
	if !ok {
		return models.ScratchpadEntry{}, fmt.Errorf("%w: %s", models.ErrScratchpadEntryNotFound, id)
	}

	if _, err := s.db.Exec(
		`UPDATE scratchpad SET consumed_at = ? WHERE seq = ? AND consumed_at IS NULL`,
		s.now().UTC().UnixNano(), seq,
	); err != nil {
		return models.ScratchpadEntry{}, fmt.Errorf("%w: consuming scratchpad entry: %v", models.ErrStoreUnavailable, err)
	}

	e, err := scanEntry(s.db.QueryRow(selectEntry+" WHERE seq = ?", seq))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScratchpadEntry{}, fmt.Errorf("%w: %s", models.ErrScratchpadEntryNotFound, id)
	}
	if err != nil {
		return models.ScratchpadEntry{}, fmt.Errorf("%w: reading scratchpad entry: %v", models.ErrStoreUnavailable, err)
	}
	return e, nil
}
