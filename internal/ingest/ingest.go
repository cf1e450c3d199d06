package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bimrag/internal/domain"
	"bimrag/internal/logger"
)

// ExportPattern matches the spreadsheet exports in a data folder.
const ExportPattern = "ifc_*_export.xlsx"

// Files resolves the export list: explicit names are joined to folder,
// otherwise the folder is globbed for ExportPattern.
func Files(folder string, names []string) ([]string, error) {
	if len(names) > 0 {
		out := make([]string, len(names))
		for i, n := range names {
			if filepath.IsAbs(n) {
				out[i] = n
			} else {
				out[i] = filepath.Join(folder, n)
			}
		}
		return out, nil
	}
	if _, err := os.Stat(folder); err != nil {
		return nil, errors.Wrapf(err, "data folder %s", folder)
	}
	matches, err := filepath.Glob(filepath.Join(folder, ExportPattern))
	if err != nil {
		return nil, errors.Wrap(err, "glob exports")
	}
	sort.Strings(matches)
	return matches, nil
}

// Ingestor turns export files into embedded element records.
type Ingestor struct {
	reader   *Reader
	embedder domain.Embedder
	workers  int
	log      *zap.Logger
}

func NewIngestor(embedder domain.Embedder, workers int, log *zap.Logger) *Ingestor {
	if workers <= 0 {
		workers = 1
	}
	log = logger.OrNop(log)
	return &Ingestor{
		reader:   NewReader(log),
		embedder: embedder,
		workers:  workers,
		log:      log.With(zap.String(logger.FieldComponent, "ingest")),
	}
}

// Ingest reads every file, prepares the embedder on the canonical texts and
// embeds all records. The result keeps file order, then row order, however
// the embedding workers finish.
func (i *Ingestor) Ingest(ctx context.Context, paths []string) ([]domain.ElementRecord, error) {
	start := time.Now()
	var rows []Row
	seen := make(map[string]string)
	for _, p := range paths {
		got, err := i.reader.ReadFile(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, r := range got {
			if prev, dup := seen[r.GlobalID]; dup {
				return nil, domain.NewInvalidArgumentError("GlobalId %q appears in %s and %s",
					r.GlobalID, filepath.Base(prev), filepath.Base(p))
			}
			seen[r.GlobalID] = p
		}
		rows = append(rows, got...)
	}
	if len(rows) == 0 {
		return nil, errors.WithHint(errors.New("no element records found"),
			"check data.folder and the ifc_<type>_export.xlsx file names")
	}
	records, err := i.Embed(ctx, rows)
	if err != nil {
		return nil, err
	}
	i.log.Info("ingested records",
		zap.Int(logger.FieldCount, len(records)),
		zap.Int(logger.FieldDimension, i.embedder.Dimension()),
		zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()))
	return records, nil
}

// Embed builds records from rows: canonical text, embedder preparation on
// the whole corpus, then bounded parallel embedding written by index.
func (i *Ingestor) Embed(ctx context.Context, rows []Row) ([]domain.ElementRecord, error) {
	records := make([]domain.ElementRecord, len(rows))
	texts := make([]string, len(rows))
	for n, r := range rows {
		text := domain.CanonicalText(r.GlobalID, r.Type, r.Params)
		records[n] = domain.ElementRecord{GlobalID: r.GlobalID, Type: r.Type, Params: r.Params, Text: text}
		texts[n] = text
	}
	if err := i.embedder.Prepare(texts); err != nil {
		return nil, errors.Wrapf(err, "prepare %s embedder", i.embedder.Name())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for n := range records {
		n := n
		g.Go(func() error {
			vec, err := i.embedder.Embed(gctx, records[n].Text)
			if err != nil {
				return errors.Wrapf(err, "embed %s", records[n].GlobalID)
			}
			records[n].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
