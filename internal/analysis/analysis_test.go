package analysis

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bimrag/internal/domain"
)

func rec(id string, t domain.ElementType, kv ...string) domain.ElementRecord {
	var fields []domain.Field
	for i := 0; i+1 < len(kv); i += 2 {
		v := domain.StringValue(kv[i+1])
		if kv[i+1] == "<null>" {
			v = domain.NullValue()
		}
		fields = append(fields, domain.Field{Name: domain.ParameterName(kv[i]), Value: v})
	}
	return domain.ElementRecord{GlobalID: id, Type: t, Params: domain.NewParameters(t, fields...)}
}

func report(t domain.ElementType, total, required int, records []domain.RecordGap, counts ...domain.ParameterCount) *domain.MissingParameterReport {
	return &domain.MissingParameterReport{
		Type:               t,
		TotalRecords:       total,
		RequiredParameters: required,
		Records:            records,
		RequiredMissing:    counts,
	}
}

func TestSummarize(t *testing.T) {
	walls := report(domain.Wall, 4, 2,
		[]domain.RecordGap{
			{GlobalID: "w1", MissingRequired: []domain.ParameterName{"FireRating"}},
			{GlobalID: "w2", MissingRequired: []domain.ParameterName{"FireRating", "ThermalTransmittance"}},
			{GlobalID: "w3"},
			{GlobalID: "w4"},
		},
		domain.ParameterCount{Name: "FireRating", Count: 2},
		domain.ParameterCount{Name: "ThermalTransmittance", Count: 1},
	)
	doors := report(domain.Door, 2, 3,
		[]domain.RecordGap{{GlobalID: "d1", MissingRequired: []domain.ParameterName{"Width"}}, {GlobalID: "d2"}},
		domain.ParameterCount{Name: "FireRating", Count: 0},
		domain.ParameterCount{Name: "Width", Count: 1},
		domain.ParameterCount{Name: "Height", Count: 0},
	)
	windows := report(domain.Window, 0, 1, nil, domain.ParameterCount{Name: "Glazing", Count: 0})
	slabs := report(domain.Slab, 3, 0, []domain.RecordGap{{GlobalID: "s1"}, {GlobalID: "s2"}, {GlobalID: "s3"}})

	sum := Summarize([]*domain.MissingParameterReport{walls, doors, windows, slabs})
	assert.Equal(t, 9, sum.TotalRecords)
	assert.Equal(t, 3, sum.RecordsMissingRequired)
	assert.Equal(t, []domain.ParameterCount{
		{Name: "FireRating", Count: 2},
		{Name: "ThermalTransmittance", Count: 1},
		{Name: "Width", Count: 1},
	}, sum.TopMissing)

	require.Len(t, sum.Completeness, 4)
	assert.InDelta(t, 5.0/8.0, sum.Completeness[0].Ratio, 1e-9)
	assert.InDelta(t, 5.0/6.0, sum.Completeness[1].Ratio, 1e-9)
	assert.Equal(t, 0.0, sum.Completeness[2].Ratio, "required params but no records")
	assert.Equal(t, 1.0, sum.Completeness[3].Ratio, "no required params")
}

func TestSummarizeTopMissingTieBreak(t *testing.T) {
	r := report(domain.Wall, 1, 4, []domain.RecordGap{{GlobalID: "w"}},
		domain.ParameterCount{Name: "D", Count: 1},
		domain.ParameterCount{Name: "B", Count: 1},
		domain.ParameterCount{Name: "C", Count: 1},
		domain.ParameterCount{Name: "A", Count: 1},
	)
	sum := Summarize([]*domain.MissingParameterReport{r})
	assert.Equal(t, []domain.ParameterCount{{Name: "A", Count: 1}, {Name: "B", Count: 1}, {Name: "C", Count: 1}}, sum.TopMissing)
}

func TestSummarizeRanksRequiredGapsOnly(t *testing.T) {
	r := report(domain.Door, 3, 1, []domain.RecordGap{{GlobalID: "d1"}},
		domain.ParameterCount{Name: "FireRating", Count: 1},
	)
	r.OptionalMissing = []domain.ParameterCount{{Name: "Finish", Count: 3}}

	sum := Summarize([]*domain.MissingParameterReport{r})
	assert.Equal(t, []domain.ParameterCount{{Name: "FireRating", Count: 1}}, sum.TopMissing)
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil)
	assert.Zero(t, sum.TotalRecords)
	assert.Empty(t, sum.TopMissing)
}

func sampleRecords() []domain.ElementRecord {
	return []domain.ElementRecord{
		rec("w1", domain.Wall, "Name", "A", "FireRating", "EI60", "Length", "4"),
		rec("w2", domain.Wall, "Name", "B", "FireRating", "<null>", "Length", "4.5"),
		rec("w3", domain.Wall, "Name", "C", "Vendor", "Acme"),
		rec("d1", domain.Door, "Name", "D", "IsExternal", "true"),
	}
}

func TestProfile(t *testing.T) {
	profiles := Profile(sampleRecords())
	require.Len(t, profiles, 2)
	assert.Equal(t, domain.Door, profiles[0].Type)

	walls := profiles[1]
	assert.Equal(t, domain.Wall, walls.Type)
	assert.Equal(t, 3, walls.Records)
	names := make([]domain.ParameterName, len(walls.Columns))
	for i, c := range walls.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []domain.ParameterName{"Name", "FireRating", "Length", "Vendor"}, names)

	fire, ok := walls.Column("FireRating")
	require.True(t, ok)
	assert.Equal(t, 2, fire.NullCount, "null and absent both count")
	assert.InDelta(t, 1.0/3.0, fire.FillRate, 1e-9)
	assert.InDelta(t, 200.0/3.0, fire.NullPercent, 1e-9)
	assert.Equal(t, 1, fire.UniqueCount)
	assert.Equal(t, "text", fire.DataType)

	length, _ := walls.Column("Length")
	assert.Equal(t, "float", length.DataType)
	name, _ := walls.Column("Name")
	assert.Equal(t, 3, name.UniqueCount)
	assert.Equal(t, 1.0, name.FillRate)

	ext, _ := profiles[0].Column("IsExternal")
	assert.Equal(t, "boolean", ext.DataType)
}

func TestCompare(t *testing.T) {
	s, err := domain.NewSchema(
		domain.TypeSchema{
			Type:       domain.Wall,
			Parameters: []domain.ParameterName{"Name", "FireRating", "ThermalTransmittance"},
			Required:   []domain.ParameterName{"Name", "FireRating", "ThermalTransmittance"},
		},
		domain.TypeSchema{Type: domain.Window, Parameters: []domain.ParameterName{"Name"}},
	)
	require.NoError(t, err)

	cmp := Compare(Profile(sampleRecords()), s, 0.9)
	assert.Equal(t, []domain.ElementType{domain.Window}, cmp.WithoutData)
	require.Len(t, cmp.Types, 1)
	wall := cmp.Types[0]
	assert.Equal(t, []domain.ParameterName{"ThermalTransmittance"}, wall.Missing)
	assert.Equal(t, []domain.ParameterName{"Length", "Vendor"}, wall.Extra)
	assert.Equal(t, []domain.ParameterName{"FireRating", "Name"}, wall.Common)
	require.Len(t, wall.LowFillRequired, 1)
	assert.Equal(t, domain.ParameterName("FireRating"), wall.LowFillRequired[0].Name)
}

func TestDeriveSchema(t *testing.T) {
	s, err := DeriveSchema(Profile(sampleRecords()), 0.8)
	require.NoError(t, err)
	assert.Equal(t, []domain.ElementType{domain.Door, domain.Wall}, s.Types())

	wall, ok := s.Lookup(domain.Wall)
	require.True(t, ok)
	assert.Equal(t, []domain.ParameterName{"Name", "FireRating", "Length", "Vendor"}, wall.Parameters)
	assert.Equal(t, []domain.ParameterName{"Name"}, wall.Required)
	assert.Equal(t, "Expected schema for wall elements", wall.Description)
	require.NoError(t, wall.Check())
}

func TestHTMLReport(t *testing.T) {
	records := sampleRecords()
	s, err := DeriveSchema(Profile(records), 0.8)
	require.NoError(t, err)
	cmp := Compare(Profile(records), s, 0.9)

	data := ReportData{
		Source:     "data",
		Generated:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Profiles:   Profile(records),
		Comparison: &cmp,
		LowFill:    0.9,
	}
	var buf bytes.Buffer
	require.NoError(t, RenderHTMLReport(&buf, data))
	html := buf.String()
	assert.Contains(t, html, "<title>IFC Data Analysis Report</title>")
	assert.Contains(t, html, "Total records: 4")
	assert.Contains(t, html, "<h2>Element Type: wall</h2>")
	assert.Contains(t, html, `<tr class="low-fill"><td>FireRating</td>`)
	assert.Contains(t, html, "<td>33.3%</td>")
	assert.Equal(t, 1, strings.Count(html, "<h2>Schema Comparison</h2>"))

	path, err := WriteHTMLReport(filepath.Join(t.TempDir(), "r", "report.html"), data)
	require.NoError(t, err)
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, html, string(written))
}
