package entityapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PgStore keeps entities in a single jsonb documents table. It is the
// backend for self-hosted deployments where no hosted entity API is
// available; semantics match the hosted API (exact-match filters,
// "-field" descending sorts).
type PgStore struct {
	DB *sql.DB
}

func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{DB: db}
}

// EnsureSchema creates the documents table if missing.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS entity_documents (
			id TEXT PRIMARY KEY,
			entity TEXT NOT NULL,
			data JSONB NOT NULL,
			created_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS entity_documents_entity_idx ON entity_documents (entity);
	`)
	if err != nil {
		return fmt.Errorf("ensuring entity schema: %w", err)
	}
	return nil
}

var sortFieldRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func orderClause(sort string) (string, error) {
	if sort == "" {
		return "", nil
	}
	dir := "ASC"
	field := sort
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		field = sort[1:]
	}
	if !sortFieldRe.MatchString(field) {
		return "", fmt.Errorf("invalid sort field %q", field)
	}
	return fmt.Sprintf(" ORDER BY data->>'%s' %s", field, dir), nil
}

func (s *PgStore) List(ctx context.Context, entity, sort string) ([]Document, error) {
	return s.Filter(ctx, entity, nil, sort, 0)
}

func (s *PgStore) Filter(ctx context.Context, entity string, query Filter, sort string, limit int) ([]Document, error) {
	q := `SELECT data FROM entity_documents WHERE entity = $1`
	args := []any{entity}
	if len(query) > 0 {
		raw, err := json.Marshal(query)
		if err != nil {
			return nil, fmt.Errorf("encoding filter: %w", err)
		}
		q += ` AND data @> $2`
		args = append(args, raw)
	}
	order, err := orderClause(sort)
	if err != nil {
		return nil, err
	}
	q += order
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s documents: %w", entity, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning %s document: %w", entity, err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decoding %s document: %w", entity, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s documents: %w", entity, err)
	}
	return docs, nil
}

func (s *PgStore) Get(ctx context.Context, entity, id string) (Document, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT data FROM entity_documents WHERE entity = $1 AND id = $2`, entity, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s %s: %w", entity, id, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", entity, err)
	}
	return doc, nil
}

func (s *PgStore) Create(ctx context.Context, entity string, fields Document) (Document, error) {
	doc := Document{}
	for k, v := range fields {
		doc[k] = v
	}
	doc["id"] = uuid.NewString()
	doc["created_date"] = time.Now().UTC().Format(time.RFC3339)

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding %s document: %w", entity, err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO entity_documents (id, entity, data) VALUES ($1, $2, $3)`,
		doc["id"], entity, raw)
	if err != nil {
		return nil, fmt.Errorf("inserting %s document: %w", entity, err)
	}
	return doc, nil
}

func (s *PgStore) Update(ctx context.Context, entity, id string, fields Document) (Document, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding %s update: %w", entity, err)
	}
	var updated []byte
	err = s.DB.QueryRowContext(ctx,
		`UPDATE entity_documents SET data = data || $3 WHERE entity = $1 AND id = $2 RETURNING data`,
		entity, id, raw).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", entity, id, err)
	}
	var doc Document
	if err := json.Unmarshal(updated, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", entity, err)
	}
	return doc, nil
}

func (s *PgStore) UpdateWhere(ctx context.Context, entity, id string, guard Filter, fields Document) (Document, error) {
	rawGuard, err := json.Marshal(guard)
	if err != nil {
		return nil, fmt.Errorf("encoding %s guard: %w", entity, err)
	}
	rawFields, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding %s update: %w", entity, err)
	}
	var updated []byte
	err = s.DB.QueryRowContext(ctx,
		`UPDATE entity_documents SET data = data || $3
		 WHERE entity = $1 AND id = $2 AND data @> $4
		 RETURNING data`,
		entity, id, rawFields, rawGuard).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing row from a failed guard.
		if _, getErr := s.Get(ctx, entity, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("conditionally updating %s %s: %w", entity, id, err)
	}
	var doc Document
	if err := json.Unmarshal(updated, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", entity, err)
	}
	return doc, nil
}

func (s *PgStore) Delete(ctx context.Context, entity, id string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM entity_documents WHERE entity = $1 AND id = $2`, entity, id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", entity, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
