package commands

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"bimrag/internal/composer"
	"bimrag/internal/config"
	"bimrag/internal/embedding"
	"bimrag/internal/ingest"
	"bimrag/internal/logger"
	"bimrag/internal/service"
	"bimrag/internal/vectorstore"
	"bimrag/internal/vectorstore/memory"
	"bimrag/internal/vectorstore/qdrant"
	"bimrag/internal/vectorstore/sqlite"
)

// Global flags, bound by the root command.
var (
	ConfigPath string
	LogLevel   string
	JSONLogs   bool
)

// app holds the components one command invocation works with.
type app struct {
	cfg     *config.AppConfig
	log     *zap.Logger
	storage vectorstore.Storage
	svc     *service.Service
}

// loadConfig reads --config, or the default locations when it is unset, and
// applies the logging flags.
func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if ConfigPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(ConfigPath)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if LogLevel != "" {
		cfg.Log.Level = LogLevel
	}
	if JSONLogs {
		cfg.Log.JSON = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp assembles the service. logFile overrides the configured log file.
func newApp(ctx context.Context, logFile string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	lc := logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON, File: cfg.Log.File}
	if logFile != "" {
		lc.File = logFile
	}
	log, err := logger.New(lc)
	if err != nil {
		return nil, err
	}

	emb, err := embedding.New(cfg.Embedder, log)
	if err != nil {
		return nil, err
	}
	st, err := newStorage(cfg.VectorStore, log)
	if err != nil {
		return nil, err
	}
	comp, err := composer.New(ctx, cfg.Composer, log)
	if err != nil {
		log.Warn("composer unavailable, falling back to extractive answers",
			zap.String(logger.FieldBackend, cfg.Composer.Type),
			zap.String(logger.FieldError, err.Error()))
		comp = composer.NewExtractive()
	}

	svc := service.New(emb, st, comp, service.Options{
		TopK:              cfg.Query.TopK,
		RetrievalTimeout:  cfg.Query.RetrievalTimeout(),
		GenerationTimeout: cfg.Query.GenerationTimeout(),
		FillThreshold:     cfg.Analysis.RequiredFillThreshold,
		DeriveThreshold:   cfg.Analysis.DeriveThreshold,
		Workers:           embedding.Workers(cfg.Embedder),
	}, log)
	return &app{cfg: cfg, log: log, storage: st, svc: svc}, nil
}

func newStorage(cfg config.VectorStoreConfig, log *zap.Logger) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "sqlite":
		if cfg.SQLite == nil {
			return nil, errors.New("sqlite vector store config missing")
		}
		return sqlite.Open(cfg.SQLite.Path, log)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant vector store config missing")
		}
		var key string
		if cfg.Qdrant.APIKeyEnv != "" {
			key = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		return qdrant.New(qdrant.Config{
			Addr:       cfg.Qdrant.Addr,
			APIKey:     key,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}, log)
	default:
		return nil, errors.Newf("unknown vector store: %s", cfg.Type)
	}
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.log.Warn("close storage", zap.String(logger.FieldError, err.Error()))
	}
	_ = a.log.Sync()
}

// exportFiles resolves the spreadsheet exports: explicit args first, then
// the configured file list, then the data folder.
func (a *app) exportFiles(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	return ingest.Files(a.cfg.Data.Folder, a.cfg.Data.Files)
}

// load makes element records available. Persistent stores are opened; the
// memory store has nothing to open, so the exports are ingested instead.
func (a *app) load(ctx context.Context) error {
	if a.storage.Name() != "memory" {
		_, err := a.svc.Open(ctx)
		return err
	}
	files, err := a.exportFiles(nil)
	if err != nil {
		return err
	}
	_, err = a.svc.Convert(ctx, files)
	return err
}

// loadSchema loads the schema at path, or the configured one when path is
// empty. With optional set, a missing document is logged and ignored.
func (a *app) loadSchema(path string, optional bool) error {
	if path == "" {
		path = a.cfg.Schema.Path
	}
	_, err := a.svc.LoadSchema(path)
	if err != nil && optional && errors.Is(err, os.ErrNotExist) {
		a.log.Debug("no schema loaded", zap.String(logger.FieldFile, path))
		return nil
	}
	return err
}
