package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bimrag/internal/config"
	"bimrag/internal/domain"
)

func writeExport(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", addr, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

// workspace writes exports, a schema and a config using the given store,
// and points ConfigPath at it.
func workspace(t *testing.T, storeType string) string {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	writeExport(t, filepath.Join(data, "ifc_door_export.xlsx"), [][]interface{}{
		{"GlobalId", "Name", "FireRating"},
		{"d1", "Entrance Door", "EI30"},
		{"d2", "Office Door", ""},
	})
	writeExport(t, filepath.Join(data, "ifc_wall_export.xlsx"), [][]interface{}{
		{"GlobalId", "Name", "FireRating"},
		{"w1", "Basic Wall", "EI60"},
	})
	schemaPath := filepath.Join(dir, "expected_schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{
  "door": {"parameters": ["FireRating", "Width"], "required_parameters": ["FireRating"]},
  "wall": {"parameters": ["FireRating"], "required_parameters": ["FireRating"]}
}`), 0o644))

	cfg := &config.AppConfig{
		Data:        config.DataConfig{Folder: data},
		Schema:      config.SchemaConfig{Path: schemaPath},
		VectorStore: config.VectorStoreConfig{Type: storeType},
		Log:         config.LogConfig{Level: "error"},
	}
	if storeType == "sqlite" {
		cfg.VectorStore.SQLite = &config.SQLiteConfig{Path: filepath.Join(dir, "bim.db")}
	}
	cfgPath := filepath.Join(dir, "bimrag.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	ConfigPath = cfgPath
	t.Cleanup(func() { ConfigPath = "" })
	return dir
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	workspace(t, "memory")
	LogLevel, JSONLogs = "debug", true
	t.Cleanup(func() { LogLevel, JSONLogs = "", false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
}

func TestNewStorage(t *testing.T) {
	st, err := newStorage(config.VectorStoreConfig{Type: "memory"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", st.Name())

	st, err = newStorage(config.VectorStoreConfig{Type: "sqlite", SQLite: &config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", st.Name())
	require.NoError(t, st.Close())

	_, err = newStorage(config.VectorStoreConfig{Type: "sqlite"}, nil)
	assert.Error(t, err)
	_, err = newStorage(config.VectorStoreConfig{Type: "chroma"}, nil)
	assert.Error(t, err)
}

func TestConvertThenQueryWithSQLite(t *testing.T) {
	workspace(t, "sqlite")
	ctx := context.Background()

	var out bytes.Buffer
	ConvertCmd.SetOut(&out)
	ConvertCmd.SetContext(ctx)
	require.NoError(t, runConvert(ConvertCmd, nil))
	assert.Contains(t, out.String(), "Stored 3 element records in sqlite")

	out.Reset()
	QueryCmd.SetOut(&out)
	QueryCmd.SetContext(ctx)
	require.NoError(t, runQuery(QueryCmd, []string{"filter:door", "entrance", "door"}))
	assert.Contains(t, out.String(), "d1")
	assert.NotContains(t, out.String(), "w1")
}

func TestQueryBeforeConvertWithSQLite(t *testing.T) {
	workspace(t, "sqlite")
	QueryCmd.SetOut(&bytes.Buffer{})
	QueryCmd.SetContext(context.Background())

	err := runQuery(QueryCmd, []string{"door"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoData), "got %v", err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestParamsWithMemoryStore(t *testing.T) {
	workspace(t, "memory")
	var out bytes.Buffer
	ParamsCmd.SetOut(&out)
	ParamsCmd.SetContext(context.Background())
	require.NoError(t, runParams(ParamsCmd, []string{"doors"}))
	assert.Contains(t, out.String(), "Missing door parameters (2 records, 1 incomplete)")

	assert.Error(t, runParams(ParamsCmd, []string{"roof"}))
}

func TestSchemaDeriveWritesFile(t *testing.T) {
	dir := workspace(t, "memory")
	deriveOutFlag = filepath.Join(dir, "derived.json")
	t.Cleanup(func() { deriveOutFlag = "" })

	var out bytes.Buffer
	schemaDeriveCmd.SetOut(&out)
	schemaDeriveCmd.SetContext(context.Background())
	require.NoError(t, runSchemaDerive(schemaDeriveCmd, nil))
	assert.FileExists(t, deriveOutFlag)
	assert.Contains(t, out.String(), "2 element types")
}
