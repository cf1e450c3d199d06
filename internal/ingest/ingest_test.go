package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bimrag/internal/domain"
	"bimrag/internal/embedding/tfidf"
)

func writeWorkbook(t *testing.T, dir, name string, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", addr, &r))
	}
	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestTypeFromFilename(t *testing.T) {
	tests := []struct {
		path    string
		want    domain.ElementType
		wantErr bool
	}{
		{"data/ifc_wall_export.xlsx", domain.Wall, false},
		{"ifc_windows_export.xlsx", domain.Window, false},
		{"IFC_Door_export.xlsx", domain.Door, false},
		{"ifc_wallstandardcase_export.xlsx", domain.WallStandardCase, false},
		{"walls.xlsx", "", true},
		{"ifc_roof_export.xlsx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := TypeFromFilename(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadWideSheet(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "ifc_wall_export.xlsx", [][]interface{}{
		{"GlobalId", "Name", "FireRating", "ThermalTransmittance", "Vendor"},
		{"w1", "Basic Wall", "EI60", 0.25, "Acme"},
		{"", "orphan", "", "", ""},
		{"w2", "Basic Wall", "", 0.3},
	})

	rows, err := NewReader(nil).ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "w1", rows[0].GlobalID)
	assert.Equal(t, domain.Wall, rows[0].Type)
	v, _ := rows[0].Params.Get("FireRating")
	assert.Equal(t, "EI60", v.Text)
	assert.Equal(t, []domain.Field{{Name: "Vendor", Value: domain.StringValue("Acme")}}, rows[0].Params.Unrecognized())

	assert.True(t, rows[1].Params.Missing("FireRating"))
	assert.True(t, rows[1].Params.Missing("Vendor"), "short rows are padded with nulls")
	assert.Equal(t, 4, rows[1].Params.Len())
}

func TestReadWideRejectsDuplicates(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "ifc_door_export.xlsx", [][]interface{}{
		{"GUID", "Name"},
		{"d1", "a"},
		{"d1", "b"},
	})
	_, err := NewReader(nil).ReadFile(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestReadWideWithoutIDColumn(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "ifc_door_export.xlsx", [][]interface{}{
		{"Name"},
		{"a"},
	})
	_, err := NewReader(nil).ReadFile(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestReadLongSheetPivots(t *testing.T) {
	path := writeWorkbook(t, t.TempDir(), "ifc_wall_export.xlsx", [][]interface{}{
		{"GUID", "Element Type", "Name", "Storey", "Data Type", "Set Name", "Attribute Name", "Value"},
		{"w1", "IfcWall", "Wall A", "L1", "Property", "Pset_WallCommon", "FireRating", "EI60"},
		{"w2", "IfcWall", "Wall B", "", "Property", "Pset_WallCommon", "IsExternal", "True"},
		{"w1", "IfcWall", "Wall A", "L1", "Quantity", "Qto_WallBaseQuantities", "Length", 4.5},
		{"w2", "IfcWall", "Wall B", "L2", "Quantity", "Qto_WallBaseQuantities", "Length", 3},
	})

	rows, err := NewReader(nil).ReadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "w1", rows[0].GlobalID)
	assert.Equal(t, "w2", rows[1].GlobalID)

	assert.Equal(t,
		[]domain.ParameterName{"IfcEntity", "Name", "Storey", "FireRating", "Length"},
		rows[0].Params.Names())
	v, _ := rows[0].Params.Get("Length")
	assert.Equal(t, "4.5", v.Text)
	v, _ = rows[1].Params.Get("Storey")
	assert.Equal(t, "L2", v.Text, "first non-empty descriptive value wins")
	_, ok := rows[0].Params.Get("Set Name")
	assert.False(t, ok)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, dir, "ifc_wall_export.xlsx", [][]interface{}{{"GlobalId"}})
	writeWorkbook(t, dir, "ifc_door_export.xlsx", [][]interface{}{{"GlobalId"}})
	writeWorkbook(t, dir, "notes.xlsx", [][]interface{}{{"x"}})

	got, err := Files(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "ifc_door_export.xlsx"),
		filepath.Join(dir, "ifc_wall_export.xlsx"),
	}, got)

	got, err = Files(dir, []string{"ifc_slab_export.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "ifc_slab_export.xlsx")}, got)

	_, err = Files(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}

func TestIngestEmbedsInFileOrder(t *testing.T) {
	dir := t.TempDir()
	walls := writeWorkbook(t, dir, "ifc_wall_export.xlsx", [][]interface{}{
		{"GlobalId", "Name", "FireRating"},
		{"w1", "Basic Wall", "EI60"},
		{"w2", "Curtain Wall", ""},
	})
	doors := writeWorkbook(t, dir, "ifc_door_export.xlsx", [][]interface{}{
		{"GlobalId", "Name", "FireRating"},
		{"d1", "Entrance Door", "EI30"},
	})

	e := tfidf.NewEmbedder()
	records, err := NewIngestor(e, 3, nil).Ingest(context.Background(), []string{walls, doors})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"w1", "w2", "d1"}, []string{records[0].GlobalID, records[1].GlobalID, records[2].GlobalID})
	for _, r := range records {
		assert.Len(t, r.Embedding, e.Dimension())
	}
	assert.Equal(t, "ElementType: wall GlobalId: w2 Name: Curtain Wall", records[1].Text)
}

func TestIngestRejectsCrossFileDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeWorkbook(t, dir, "ifc_wall_export.xlsx", [][]interface{}{{"GlobalId"}, {"x"}})
	b := writeWorkbook(t, dir, "ifc_slab_export.xlsx", [][]interface{}{{"GlobalId"}, {"x"}})
	_, err := NewIngestor(tfidf.NewEmbedder(), 1, nil).Ingest(context.Background(), []string{a, b})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestIngestEmpty(t *testing.T) {
	a := writeWorkbook(t, t.TempDir(), "ifc_wall_export.xlsx", [][]interface{}{{"GlobalId"}})
	_, err := NewIngestor(tfidf.NewEmbedder(), 1, nil).Ingest(context.Background(), []string{a})
	assert.Error(t, err)
}

type failingEmbedder struct{ calls int32 }

func (f *failingEmbedder) Name() string           { return "failing" }
func (f *failingEmbedder) Prepare([]string) error { return nil }
func (f *failingEmbedder) Dimension() int         { return 1 }
func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if atomic.AddInt32(&f.calls, 1) == 2 {
		return nil, errors.New("quota exceeded")
	}
	return []float64{1}, nil
}

func TestEmbedPropagatesFailure(t *testing.T) {
	rows := []Row{
		{GlobalID: "a", Type: domain.Wall, Params: domain.NewParameters(domain.Wall)},
		{GlobalID: "b", Type: domain.Wall, Params: domain.NewParameters(domain.Wall)},
		{GlobalID: "c", Type: domain.Wall, Params: domain.NewParameters(domain.Wall)},
	}
	_, err := NewIngestor(&failingEmbedder{}, 1, nil).Embed(context.Background(), rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
