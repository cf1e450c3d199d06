// Package service wires ingestion, persistence, validation, retrieval and
// answer composition into the operations the command layer exposes.
package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bimrag/internal/analysis"
	"bimrag/internal/composer"
	"bimrag/internal/domain"
	"bimrag/internal/ingest"
	"bimrag/internal/logger"
	"bimrag/internal/query"
	"bimrag/internal/schema"
	"bimrag/internal/store"
	"bimrag/internal/vectorstore"
)

// Options tune the service. Zero values fall back to the defaults of the
// shipped configuration.
type Options struct {
	TopK              int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	// FillThreshold flags required parameters in schema comparisons.
	FillThreshold float64
	// DeriveThreshold marks parameters required in derived schemas.
	DeriveThreshold float64
	Workers         int
}

func (o *Options) applyDefaults() {
	if o.TopK == 0 {
		o.TopK = 5
	}
	if o.RetrievalTimeout == 0 {
		o.RetrievalTimeout = 15 * time.Second
	}
	if o.GenerationTimeout == 0 {
		o.GenerationTimeout = 60 * time.Second
	}
	if o.FillThreshold == 0 {
		o.FillThreshold = 0.9
	}
	if o.DeriveThreshold == 0 {
		o.DeriveThreshold = 0.8
	}
	if o.Workers == 0 {
		o.Workers = 4
	}
}

// Answer is the outcome of Ask.
type Answer struct {
	Query  string
	Result domain.QueryResult
	// Report is set when the question was answered from validation.
	Report   *domain.MissingParameterReport
	Text     string
	Composer string
	// Degraded is true when the configured composer failed and the
	// extractive rendering was used instead. GenerationErr holds the cause.
	Degraded      bool
	GenerationErr error
}

// Analysis bundles per-type reports with their summary.
type Analysis struct {
	Reports []*domain.MissingParameterReport
	Summary domain.AnalysisSummary
}

// Service owns the element store and the loaded schema. The store is
// replaced wholesale by Convert or Open and is never mutated in place.
type Service struct {
	embedder domain.Embedder
	storage  vectorstore.Storage
	composer composer.Composer
	fallback composer.Composer
	engine   *query.Engine
	opts     Options
	root     *zap.Logger
	log      *zap.Logger
	tracer   trace.Tracer

	mu     sync.RWMutex
	store  *store.Store
	schema *domain.Schema
}

func New(embedder domain.Embedder, storage vectorstore.Storage, comp composer.Composer, opts Options, log *zap.Logger) *Service {
	opts.applyDefaults()
	log = logger.OrNop(log)
	if comp == nil {
		comp = composer.NewExtractive()
	}
	return &Service{
		embedder: embedder,
		storage:  storage,
		composer: comp,
		fallback: composer.NewExtractive(),
		engine:   query.NewEngine(embedder, log),
		opts:     opts,
		root:     log,
		log:      log.With(zap.String(logger.FieldComponent, "service")),
		tracer:   otel.Tracer("bimrag/internal/service"),
	}
}

// Store returns the current element store, nil before Convert or Open.
func (s *Service) Store() *store.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Schema returns the loaded schema, nil when none is loaded.
func (s *Service) Schema() *domain.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema
}

// UseSchema replaces the schema used for validation.
func (s *Service) UseSchema(sch *domain.Schema) {
	s.mu.Lock()
	s.schema = sch
	s.mu.Unlock()
}

// LoadSchema reads the schema document at path and makes it current.
func (s *Service) LoadSchema(path string) (*domain.Schema, error) {
	sch, err := schema.Load(path)
	if err != nil {
		return nil, err
	}
	s.UseSchema(sch)
	s.log.Info("loaded schema", zap.String(logger.FieldFile, path), zap.Int(logger.FieldCount, len(sch.Types())))
	return sch, nil
}

func (s *Service) setStore(st *store.Store) {
	s.mu.Lock()
	s.store = st
	s.mu.Unlock()
}

func (s *Service) requireStore() (*store.Store, error) {
	st := s.Store()
	if st == nil {
		return nil, errors.WithHint(errors.Wrap(domain.ErrNoData, "no element records loaded"),
			"run `bimrag convert` to ingest the spreadsheet exports")
	}
	return st, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "service."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Convert ingests the export files, replaces the persisted records and makes
// the result the current store.
func (s *Service) Convert(ctx context.Context, paths []string) (st *store.Store, err error) {
	ctx, span := s.startSpan(ctx, "Convert", attribute.Int("files", len(paths)), attribute.String("backend", s.storage.Name()))
	defer func() { endSpan(span, err) }()

	start := time.Now()
	records, err := ingest.NewIngestor(s.embedder, s.opts.Workers, s.root).Ingest(ctx, paths)
	if err != nil {
		return nil, err
	}
	st, err = store.New(records)
	if err != nil {
		return nil, err
	}
	if err := s.storage.Clear(ctx); err != nil {
		return nil, errors.Wrapf(err, "clear %s storage", s.storage.Name())
	}
	if err := s.storage.Init(ctx, st.Dimension()); err != nil {
		return nil, errors.Wrapf(err, "init %s storage", s.storage.Name())
	}
	if err := s.storage.Upsert(ctx, records); err != nil {
		return nil, errors.Wrapf(err, "persist records to %s", s.storage.Name())
	}
	s.setStore(st)
	span.SetAttributes(attribute.Int("records", st.Len()))
	s.log.Info("converted exports",
		zap.Int(logger.FieldCount, st.Len()),
		zap.String(logger.FieldBackend, s.storage.Name()),
		zap.Int(logger.FieldDimension, st.Dimension()),
		zap.Int64(logger.FieldDurationMS, time.Since(start).Milliseconds()))
	return st, nil
}

// Open loads persisted records in stored order, prepares the embedder on
// their canonical texts and makes them the current store.
func (s *Service) Open(ctx context.Context) (st *store.Store, err error) {
	ctx, span := s.startSpan(ctx, "Open", attribute.String("backend", s.storage.Name()))
	defer func() { endSpan(span, err) }()

	records, err := s.storage.Load(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "load records from %s", s.storage.Name())
	}
	if len(records) == 0 {
		return nil, errors.WithHint(errors.Wrapf(domain.ErrNoData, "%s storage holds no records", s.storage.Name()),
			"run `bimrag convert` to ingest the spreadsheet exports")
	}
	st, err = store.New(records)
	if err != nil {
		return nil, err
	}
	if err := s.embedder.Prepare(st.Texts()); err != nil {
		return nil, errors.Wrapf(err, "prepare %s embedder", s.embedder.Name())
	}
	if d := s.embedder.Dimension(); d > 0 && d != st.Dimension() {
		return nil, errors.WithHint(
			domain.NewInvalidArgumentError("stored embeddings have %d dimensions, %s embedder produces %d",
				st.Dimension(), s.embedder.Name(), d),
			"re-run `bimrag convert` after changing the embedder")
	}
	s.setStore(st)
	s.log.Info("opened stored records", zap.Int(logger.FieldCount, st.Len()), zap.String(logger.FieldBackend, s.storage.Name()))
	return st, nil
}

// MissingParameters validates the current store against the loaded schema
// for one element type. A type without records yields a zero report and an
// error wrapping domain.ErrNoData.
func (s *Service) MissingParameters(ctx context.Context, t domain.ElementType) (rep *domain.MissingParameterReport, err error) {
	_, span := s.startSpan(ctx, "MissingParameters", attribute.String("element_type", string(t)))
	defer func() { endSpan(span, err) }()

	st, err := s.requireStore()
	if err != nil {
		return nil, err
	}
	return schema.Validate(st.Records(), s.Schema(), t)
}

// Analyze validates every schema type and summarizes the reports.
func (s *Service) Analyze(ctx context.Context) (a *Analysis, err error) {
	_, span := s.startSpan(ctx, "Analyze")
	defer func() { endSpan(span, err) }()

	st, err := s.requireStore()
	if err != nil {
		return nil, err
	}
	sch := s.Schema()
	if sch == nil {
		return nil, errors.WithHint(errors.Wrap(domain.ErrSchemaNotFound, "no schema loaded"),
			"pass a schema document or create one with `bimrag schema derive`")
	}
	reports, err := schema.ValidateAll(st.Records(), sch)
	if err != nil {
		return nil, err
	}
	sum := analysis.Summarize(reports)
	span.SetAttributes(attribute.Int("records", sum.TotalRecords), attribute.Int("records_missing_required", sum.RecordsMissingRequired))
	return &Analysis{Reports: reports, Summary: sum}, nil
}

// Profile describes the columns observed per element type.
func (s *Service) Profile() ([]analysis.TypeProfile, error) {
	st, err := s.requireStore()
	if err != nil {
		return nil, err
	}
	return analysis.Profile(st.Records()), nil
}

// Compare diffs the observed columns against sch, or the loaded schema when
// sch is nil.
func (s *Service) Compare(sch *domain.Schema) (*analysis.Comparison, error) {
	profiles, err := s.Profile()
	if err != nil {
		return nil, err
	}
	if sch == nil {
		sch = s.Schema()
	}
	if sch == nil {
		return nil, errors.Wrap(domain.ErrSchemaNotFound, "no schema to compare against")
	}
	c := analysis.Compare(profiles, sch, s.opts.FillThreshold)
	return &c, nil
}

// DeriveSchema builds an expected schema from the current data.
func (s *Service) DeriveSchema() (*domain.Schema, error) {
	profiles, err := s.Profile()
	if err != nil {
		return nil, err
	}
	return analysis.DeriveSchema(profiles, s.opts.DeriveThreshold)
}

// WriteReport renders the HTML data-quality report to path. The comparison
// section is included when a schema is loaded.
func (s *Service) WriteReport(path, source string) (string, error) {
	profiles, err := s.Profile()
	if err != nil {
		return "", err
	}
	data := analysis.ReportData{
		Source:    source,
		Generated: time.Now(),
		Profiles:  profiles,
		LowFill:   s.opts.FillThreshold,
	}
	if sch := s.Schema(); sch != nil {
		c := analysis.Compare(profiles, sch, s.opts.FillThreshold)
		data.Comparison = &c
	}
	out, err := analysis.WriteHTMLReport(path, data)
	if err != nil {
		return "", err
	}
	s.log.Info("wrote report", zap.String(logger.FieldFile, out))
	return out, nil
}

// Ask answers a question. Missing-parameter questions naming an element
// type are answered from validation; everything else goes through
// retrieval. topK 0 means the configured default. Composer failures
// degrade to the extractive rendering and are reported on the Answer, not
// as an error.
func (s *Service) Ask(ctx context.Context, question string, topK int, filter *domain.ElementType) (ans *Answer, err error) {
	ctx, span := s.startSpan(ctx, "Ask", attribute.String("query", question), attribute.String("composer", s.composer.Name()))
	defer func() { endSpan(span, err) }()

	if topK == 0 {
		topK = s.opts.TopK
	}
	ans = &Answer{Query: question}
	req := composer.Request{Query: question}

	rest, directive, err := query.ParseDirective(question)
	if err != nil {
		return nil, err
	}
	if directive != "" {
		filter = &directive
	}

	t, ok, err := missingParameterTarget(rest, filter)
	if err != nil {
		return nil, err
	}
	if ok {
		rep, err := s.MissingParameters(ctx, t)
		if err != nil && !errors.Is(err, domain.ErrNoData) {
			return nil, err
		}
		if rep == nil {
			return nil, err
		}
		ans.Report = rep
		req.Report = rep
		span.SetAttributes(attribute.String("element_type", string(t)))
	} else {
		st, err := s.requireStore()
		if err != nil {
			return nil, err
		}
		rctx, cancel := context.WithTimeout(ctx, s.opts.RetrievalTimeout)
		res, err := s.engine.Query(rctx, rest, st, topK, filter)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, errors.Mark(errors.Wrapf(err, "retrieval exceeded %s", s.opts.RetrievalTimeout), domain.ErrRetrievalTimeout)
			}
			return nil, err
		}
		ans.Result = res
		req.Result = res
		span.SetAttributes(attribute.Int("matches", len(res.Matches)))
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
	text, genErr := s.composer.Compose(gctx, req)
	cancel()
	ans.Composer = s.composer.Name()
	if genErr != nil {
		if errors.Is(genErr, context.DeadlineExceeded) {
			genErr = errors.Mark(errors.Wrapf(genErr, "generation exceeded %s", s.opts.GenerationTimeout), domain.ErrGenerationTimeout)
		}
		s.log.Warn("composer failed, using extractive answer",
			zap.String(logger.FieldBackend, s.composer.Name()),
			zap.String(logger.FieldError, genErr.Error()))
		span.AddEvent("composer degraded")
		ans.Degraded = true
		ans.GenerationErr = genErr
		ans.Composer = s.fallback.Name()
		if text, err = s.fallback.Compose(ctx, req); err != nil {
			return nil, err
		}
	}
	ans.Text = text
	return ans, nil
}

// MissingParameterQuestion reports whether question asks for missing
// parameters of an element type, and which. The question must contain
// "missing", "parameter" and a word naming a registered type.
func MissingParameterQuestion(question string) (domain.ElementType, bool) {
	if !asksForMissing(question) {
		return "", false
	}
	words := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
	for _, w := range words {
		if t, ok := domain.ParseElementType(w); ok {
			return t, true
		}
	}
	return "", false
}

func asksForMissing(question string) bool {
	lower := strings.ToLower(question)
	return strings.Contains(lower, "missing") && strings.Contains(lower, "parameter")
}

// missingParameterTarget resolves the type a missing-parameter question is
// about. A filter names the type on its own; a type word in the question
// must then agree with it.
func missingParameterTarget(question string, filter *domain.ElementType) (domain.ElementType, bool, error) {
	if !asksForMissing(question) {
		return "", false, nil
	}
	named, hasName := MissingParameterQuestion(question)
	if filter == nil {
		return named, hasName, nil
	}
	if hasName && named != *filter {
		return "", false, domain.NewInvalidArgumentError("question names %s but the filter is %s", named, *filter)
	}
	return *filter, true, nil
}
