package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/samber/oops"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	ref INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	user_id TEXT NOT NULL DEFAULT '',
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_collection_user ON records(collection, user_id);
`

// SQLiteStore persists records in a single sqlite table, one JSON document
// per row.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, oops.Wrapf(err, "failed to create db directory")
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to open sqlite database")
	}

	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, oops.Wrapf(err, "failed to initialize schema")
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, userID string) ([]Record, error) {
	query := `SELECT data FROM records WHERE collection = ?`
	args := []any{collection}

	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	query += ` ORDER BY ref`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to query records")
	}
	defer rows.Close()

	var result []Record

	for rows.Next() {
		var data string
		if err = rows.Scan(&data); err != nil {
			return nil, oops.Wrapf(err, "failed to scan record")
		}

		var rec Record
		if err = json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, oops.Wrapf(err, "failed to decode record")
		}

		result = append(result, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, oops.Wrapf(err, "failed to iterate records")
	}

	return result, nil
}

func (s *SQLiteStore) Append(ctx context.Context, collection string, rec Record) error {
	if rec["id"] == "" {
		rec["id"] = uuid.NewString()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return oops.Wrapf(err, "failed to encode record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (collection, user_id, data) VALUES (?, ?, ?)`,
		collection, rec["user_id"], string(data))
	if err != nil {
		return oops.Wrapf(err, "failed to insert record")
	}

	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, collection string, ref Ref, partial Record) error {
	var data string

	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE collection = ? AND ref = ?`,
		collection, string(ref)).Scan(&data)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return oops.Wrapf(err, "failed to load record")
	}

	var rec Record
	if err = json.Unmarshal([]byte(data), &rec); err != nil {
		return oops.Wrapf(err, "failed to decode record")
	}

	for key, value := range partial {
		rec[key] = value
	}

	updated, err := json.Marshal(rec)
	if err != nil {
		return oops.Wrapf(err, "failed to encode record")
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE records SET data = ?, user_id = ? WHERE collection = ? AND ref = ?`,
		string(updated), rec["user_id"], collection, string(ref))
	if err != nil {
		return oops.Wrapf(err, "failed to update record")
	}

	return nil
}

func (s *SQLiteStore) FindRef(ctx context.Context, collection, userID, id string) (Ref, bool, error) {
	query := `SELECT ref, data FROM records WHERE collection = ?`
	args := []any{collection}

	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", false, oops.Wrapf(err, "failed to query records")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ref  int64
			data string
		)

		if err = rows.Scan(&ref, &data); err != nil {
			return "", false, oops.Wrapf(err, "failed to scan record")
		}

		var rec Record
		if err = json.Unmarshal([]byte(data), &rec); err != nil {
			return "", false, oops.Wrapf(err, "failed to decode record")
		}

		if matches(rec, id) {
			return Ref(fmt.Sprint(ref)), true, nil
		}
	}

	if err = rows.Err(); err != nil {
		return "", false, oops.Wrapf(err, "failed to iterate records")
	}

	return "", false, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
