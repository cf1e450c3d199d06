package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"bimrag/internal/domain"
	"bimrag/internal/logger"
	"bimrag/internal/vectorstore"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS element_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS elements (
	ordinal      INTEGER PRIMARY KEY AUTOINCREMENT,
	global_id    TEXT NOT NULL UNIQUE,
	element_type TEXT NOT NULL,
	text         TEXT NOT NULL,
	params       TEXT NOT NULL,
	embedding    BLOB NOT NULL
);`

const upsertSQL = `
INSERT INTO elements (global_id, element_type, text, params, embedding)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(global_id) DO UPDATE SET
	element_type = excluded.element_type,
	text = excluded.text,
	params = excluded.params,
	embedding = excluded.embedding`

// Storage persists element records in a SQLite database. Ordinals keep the
// first-insert order so Load reproduces the ingestion order.
type Storage struct {
	db        *sql.DB
	dimension int
	log       *zap.Logger
}

// Open opens (or creates) the database at path.
func Open(path string, log *zap.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite database %s", path)
	}
	// A single connection keeps ":memory:" databases coherent across calls.
	db.SetMaxOpenConns(1)
	return NewWithDB(db, log), nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB, log *zap.Logger) *Storage {
	return &Storage{
		db:  db,
		log: logger.OrNop(log).With(zap.String(logger.FieldBackend, "sqlite")),
	}
}

func (s *Storage) Name() string { return "sqlite" }

// Init creates the tables and records the embedding dimension. An existing
// database written with a different dimension is rejected.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "create element tables")
	}
	stored, err := s.storedDimension(ctx)
	if err != nil {
		return err
	}
	if stored != 0 && stored != dimension {
		return domain.NewInvalidArgumentError("database holds %d-dimensional embeddings, embedder produces %d", stored, dimension)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO element_meta (key, value) VALUES ('dimension', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(dimension)); err != nil {
		return errors.Wrap(err, "record dimension")
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) storedDimension(ctx context.Context) (int, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM element_meta WHERE key = 'dimension'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read stored dimension")
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "stored dimension %q", v)
	}
	return n, nil
}

// Upsert writes records in one transaction.
func (s *Storage) Upsert(ctx context.Context, records []domain.ElementRecord) error {
	if s.dimension == 0 {
		return errors.New("sqlite storage not initialized")
	}
	if err := vectorstore.CheckDimension(records, s.dimension); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin upsert")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return errors.Wrap(err, "prepare upsert")
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		params, err := vectorstore.EncodeParams(r.Params)
		if err != nil {
			return errors.Wrapf(err, "record %s", r.GlobalID)
		}
		if _, err := stmt.ExecContext(ctx, r.GlobalID, string(r.Type), r.Text, params, encodeVector(r.Embedding)); err != nil {
			return errors.Wrapf(err, "upsert record %s", r.GlobalID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit upsert")
	}
	s.log.Debug("upserted records", zap.Int(logger.FieldCount, len(records)))
	return nil
}

// Load returns every stored record in ordinal order.
func (s *Storage) Load(ctx context.Context) ([]domain.ElementRecord, error) {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, errors.Wrap(err, "create element tables")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT global_id, element_type, text, params, embedding FROM elements ORDER BY ordinal`)
	if err != nil {
		return nil, errors.Wrap(err, "query elements")
	}
	defer rows.Close()

	var out []domain.ElementRecord
	for rows.Next() {
		var (
			id, typ, text, params string
			blob                  []byte
		)
		if err := rows.Scan(&id, &typ, &text, &params, &blob); err != nil {
			return nil, errors.Wrap(err, "scan element")
		}
		t := domain.ElementType(typ)
		p, err := vectorstore.DecodeParams(t, params)
		if err != nil {
			return nil, errors.Wrapf(err, "record %s", id)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, errors.Wrapf(err, "record %s", id)
		}
		out = append(out, domain.ElementRecord{GlobalID: id, Type: t, Params: p, Text: text, Embedding: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate elements")
	}
	return out, nil
}

// Clear removes all records and the stored dimension. It may be called on a
// fresh database.
func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "create element tables")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM elements`); err != nil {
		return errors.Wrap(err, "clear elements")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM element_meta`); err != nil {
		return errors.Wrap(err, "clear element meta")
	}
	s.dimension = 0
	return nil
}

func (s *Storage) Close() error { return s.db.Close() }

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, errors.Newf("embedding blob of %d bytes is not a float64 array", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out, nil
}
