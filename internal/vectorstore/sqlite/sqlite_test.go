package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bimrag/internal/domain"
)

func records() []domain.ElementRecord {
	return []domain.ElementRecord{
		{
			GlobalID: "w1",
			Type:     domain.Wall,
			Params: domain.NewParameters(domain.Wall,
				domain.Field{Name: "FireRating", Value: domain.StringValue("EI60")},
				domain.Field{Name: "LoadBearing", Value: domain.NullValue()},
			),
			Text:      "ElementType: wall GlobalId: w1 FireRating: EI60",
			Embedding: []float64{0.6, 0.8},
		},
		{
			GlobalID:  "d1",
			Type:      domain.Door,
			Params:    domain.NewParameters(domain.Door),
			Text:      "ElementType: door GlobalId: d1",
			Embedding: []float64{0, 0},
		},
	}
}

func TestRoundTripFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bim.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, records()))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(ctx, 2))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "w1", got[0].GlobalID)
	assert.Equal(t, domain.Wall, got[0].Type)
	assert.Equal(t, []float64{0.6, 0.8}, got[0].Embedding)
	assert.Equal(t, records()[0].Params.Fields(), got[0].Params.Fields())
	assert.Equal(t, "d1", got[1].GlobalID)
}

func TestInitRejectsDimensionChange(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "bim.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Init(ctx, 2))
	err = s.Init(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Init(ctx, 3))
}

func TestUpsertKeepsFirstInsertOrder(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(ctx, 2))

	recs := records()
	require.NoError(t, s.Upsert(ctx, recs))
	recs[0].Text = "changed"
	require.NoError(t, s.Upsert(ctx, recs[:1]))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "changed", got[0].Text)
}

func TestUpsertRollsBackOnExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewWithDB(db, nil)
	s.dimension = 2

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO elements").
		ExpectExec().
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = s.Upsert(context.Background(), records()[:1])
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT global_id").WillReturnError(errors.New("locked"))
	_, err = NewWithDB(db, nil).Load(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRejectsCorruptBlob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"global_id", "element_type", "text", "params", "embedding"}).
		AddRow("w1", "wall", "t", "[]", []byte{1, 2, 3})
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT global_id").WillReturnRows(rows)

	_, err = NewWithDB(db, nil).Load(context.Background())
	assert.Error(t, err)
}

func TestVectorCodec(t *testing.T) {
	v := []float64{0, -1.5, 3.25}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestClearOnFreshDatabase(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Clear(ctx))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadOnFreshDatabase(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "fresh.db"), nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
