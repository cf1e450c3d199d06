package analysis

import (
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// ReportData feeds the HTML report.
type ReportData struct {
	Source     string
	Generated  time.Time
	Profiles   []TypeProfile
	Comparison *Comparison
	// LowFill marks parameter rows under this fill rate.
	LowFill float64
}

// TotalRecords sums records over all profiled types.
func (d ReportData) TotalRecords() int {
	n := 0
	for _, p := range d.Profiles {
		n += p.Records
	}
	return n
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"pct": func(v float64) float64 { return v * 100 },
	"low": func(fill, threshold float64) bool { return fill < threshold },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>IFC Data Analysis Report</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
h1, h2, h3 { color: #333; }
table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
th, td { padding: 8px; text-align: left; border: 1px solid #ddd; }
th { background-color: #f2f2f2; }
.missing { color: red; }
.extra { color: orange; }
.low-fill { background-color: #ffe6e6; }
.summary { background-color: #f9f9f9; padding: 10px; margin-bottom: 20px; }
</style>
</head>
<body>
<h1>IFC Data Analysis Report</h1>
<div class="summary">
<h2>Summary</h2>
<p>Analyzed {{len .Profiles}} element types from {{.Source}}.</p>
<p>Total records: {{.TotalRecords}}</p>
<p>Generated: {{.Generated.Format "2006-01-02 15:04:05"}}</p>
<table>
<tr><th>Element Type</th><th>Record Count</th><th>Parameter Count</th></tr>
{{- range .Profiles}}
<tr><td>{{.Type}}</td><td>{{.Records}}</td><td>{{len .Columns}}</td></tr>
{{- end}}
</table>
</div>
{{- with .Comparison}}
<h2>Schema Comparison</h2>
{{- range .Types}}
<h3>{{.Type}}</h3>
<table>
<tr><th>Status</th><th>Count</th><th>Parameters</th></tr>
<tr class="missing"><td>Missing Parameters</td><td>{{len .Missing}}</td><td>{{range $i, $n := .Missing}}{{if $i}}, {{end}}{{$n}}{{end}}</td></tr>
<tr class="extra"><td>Extra Parameters</td><td>{{len .Extra}}</td><td>{{range $i, $n := .Extra}}{{if $i}}, {{end}}{{$n}}{{end}}</td></tr>
<tr><td>Common Parameters</td><td>{{len .Common}}</td><td>{{range $i, $n := .Common}}{{if $i}}, {{end}}{{$n}}{{end}}</td></tr>
</table>
{{- if .LowFillRequired}}
<p class="missing">Required parameters with low fill rate:</p>
<ul>
{{- range .LowFillRequired}}
<li>{{.Name}}: {{printf "%.1f" (pct .FillRate)}}%</li>
{{- end}}
</ul>
{{- end}}
{{- end}}
{{- if .WithoutData}}
<p class="missing">Element types without data: {{range $i, $t := .WithoutData}}{{if $i}}, {{end}}{{$t}}{{end}}</p>
{{- end}}
{{- end}}
{{- $threshold := .LowFill}}
{{- range .Profiles}}
<h2>Element Type: {{.Type}}</h2>
<h3>Parameter Details</h3>
<table>
<tr><th>Parameter</th><th>Data Type</th><th>Null Count</th><th>Null %</th><th>Unique Values</th><th>Fill Rate %</th></tr>
{{- range .Columns}}
<tr{{if low .FillRate $threshold}} class="low-fill"{{end}}><td>{{.Name}}</td><td>{{.DataType}}</td><td>{{.NullCount}}</td><td>{{printf "%.1f" .NullPercent}}%</td><td>{{.UniqueCount}}</td><td>{{printf "%.1f" (pct .FillRate)}}%</td></tr>
{{- end}}
</table>
{{- end}}
</body>
</html>
`))

// RenderHTMLReport writes the report to w.
func RenderHTMLReport(w io.Writer, data ReportData) error {
	return errors.Wrap(reportTemplate.Execute(w, data), "render report")
}

// WriteHTMLReport writes the report to path and returns the path written.
func WriteHTMLReport(path string, data ReportData) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrap(err, "create report directory")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create report %s", path)
	}
	if err := RenderHTMLReport(f, data); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close report %s", path)
	}
	return path, nil
}
