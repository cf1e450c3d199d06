package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"bimrag/internal/domain"
	"bimrag/internal/logger"
)

// Column names of the IFC extraction exports.
const (
	colGlobalID      = "GlobalId"
	colGUID          = "GUID"
	colAttributeName = "Attribute Name"
	colValue         = "Value"
	colElementType   = "Element Type"
)

// Long-sheet bookkeeping columns that describe a row, not the element.
var longSheetMeta = map[string]struct{}{
	"Data Type": {},
	"Set Name":  {},
	"Unit":      {},
}

// Row is one element as read from a sheet, before embedding.
type Row struct {
	GlobalID string
	Type     domain.ElementType
	Params   domain.Parameters
}

// Reader reads IFC spreadsheet exports.
type Reader struct {
	log *zap.Logger
}

func NewReader(log *zap.Logger) *Reader {
	return &Reader{log: logger.OrNop(log).With(zap.String(logger.FieldComponent, "ingest"))}
}

// TypeFromFilename derives the element type from "ifc_<type>_export.xlsx".
func TypeFromFilename(path string) (domain.ElementType, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, "_")
	if len(parts) < 2 || !strings.EqualFold(parts[0], "ifc") {
		return "", domain.NewInvalidArgumentError("file name %q does not follow ifc_<type>_export.xlsx", filepath.Base(path))
	}
	t, ok := domain.ParseElementType(parts[1])
	if !ok {
		return "", errors.WithHintf(
			domain.NewInvalidArgumentError("unknown element type %q in file name %q", parts[1], filepath.Base(path)),
			"known element types: %v", domain.ElementTypes())
	}
	return t, nil
}

// ReadFile reads the first sheet of an export. Wide sheets carry one element
// per row keyed by GlobalId or GUID; long sheets carry one attribute per row
// (GUID, Attribute Name, Value) and are pivoted into one element per GUID.
func (r *Reader) ReadFile(ctx context.Context, path string) ([]Row, error) {
	t, err := TypeFromFilename(path)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open workbook %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Newf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s of %s", sheets[0], path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := r.log.With(zap.String(logger.FieldFile, filepath.Base(path)), zap.String(logger.FieldSheet, sheets[0]))
	if len(rows) == 0 {
		log.Warn("empty sheet")
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	var out []Row
	if isLong(header) {
		out, err = pivotLong(t, header, rows[1:], log)
	} else {
		out, err = readWide(t, header, rows[1:], log)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s", filepath.Base(path))
	}
	log.Info("read sheet", zap.String(logger.FieldElementType, string(t)), zap.Int(logger.FieldCount, len(out)))
	return out, nil
}

func isLong(header []string) bool {
	return indexOf(header, colAttributeName) >= 0 && indexOf(header, colValue) >= 0 && idColumn(header) >= 0
}

func idColumn(header []string) int {
	if i := indexOf(header, colGlobalID); i >= 0 {
		return i
	}
	return indexOf(header, colGUID)
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) domain.Value {
	if i < 0 || i >= len(row) || row[i] == "" {
		return domain.NullValue()
	}
	return domain.StringValue(row[i])
}

func readWide(t domain.ElementType, header []string, rows [][]string, log *zap.Logger) ([]Row, error) {
	id := idColumn(header)
	if id < 0 {
		return nil, domain.NewInvalidArgumentError("sheet has neither a %s nor a %s column", colGlobalID, colGUID)
	}
	seen := make(map[string]int)
	var out []Row
	for n, row := range rows {
		gid := strings.TrimSpace(cell(row, id).Text)
		if gid == "" {
			log.Warn("skipping row without identifier", zap.Int(logger.FieldRow, n+2))
			continue
		}
		if first, dup := seen[gid]; dup {
			return nil, domain.NewInvalidArgumentError("duplicate GlobalId %q in rows %d and %d", gid, first, n+2)
		}
		seen[gid] = n + 2
		fields := make([]domain.Field, 0, len(header))
		for i, h := range header {
			if i == id || h == "" {
				continue
			}
			fields = append(fields, domain.Field{Name: domain.ParameterName(h), Value: cell(row, i)})
		}
		out = append(out, Row{GlobalID: gid, Type: t, Params: domain.NewParameters(t, fields...)})
	}
	return out, nil
}

// pivotLong folds attribute rows into elements in first-seen GUID order.
// Descriptive columns (Name, Storey, ...) keep their first non-empty value;
// "Element Type" becomes the IfcEntity parameter.
func pivotLong(t domain.ElementType, header []string, rows [][]string, log *zap.Logger) ([]Row, error) {
	id := idColumn(header)
	attr := indexOf(header, colAttributeName)
	val := indexOf(header, colValue)

	type pending struct {
		fields []domain.Field
		pos    map[domain.ParameterName]int
	}
	byID := make(map[string]*pending)
	var order []string

	set := func(p *pending, name domain.ParameterName, v domain.Value, overwrite bool) {
		if i, ok := p.pos[name]; ok {
			if overwrite || p.fields[i].Value.Empty() {
				p.fields[i].Value = v
			}
			return
		}
		p.pos[name] = len(p.fields)
		p.fields = append(p.fields, domain.Field{Name: name, Value: v})
	}

	for n, row := range rows {
		gid := strings.TrimSpace(cell(row, id).Text)
		if gid == "" {
			log.Warn("skipping row without identifier", zap.Int(logger.FieldRow, n+2))
			continue
		}
		p, ok := byID[gid]
		if !ok {
			p = &pending{pos: make(map[domain.ParameterName]int)}
			byID[gid] = p
			order = append(order, gid)
		}
		for i, h := range header {
			if i == id || i == attr || i == val || h == "" {
				continue
			}
			if _, meta := longSheetMeta[h]; meta {
				continue
			}
			name := domain.ParameterName(h)
			if strings.EqualFold(h, colElementType) {
				name = "IfcEntity"
			}
			set(p, name, cell(row, i), false)
		}
		a := strings.TrimSpace(cell(row, attr).Text)
		if a == "" {
			continue
		}
		set(p, domain.ParameterName(a), cell(row, val), true)
	}

	out := make([]Row, 0, len(order))
	for _, gid := range order {
		out = append(out, Row{GlobalID: gid, Type: t, Params: domain.NewParameters(t, byID[gid].fields...)})
	}
	return out, nil
}
