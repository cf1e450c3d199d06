package embedding

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"bimrag/internal/config"
	"bimrag/internal/domain"
	"bimrag/internal/embedding/openai"
	"bimrag/internal/embedding/tfidf"
)

// New builds the embedder selected by cfg.
func New(cfg config.EmbedderConfig, log *zap.Logger) (domain.Embedder, error) {
	switch cfg.Type {
	case "", "tfidf":
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		return openai.NewClient(openai.Config{
			BaseURL:        oc.BaseURL,
			APIKeyEnv:      oc.APIKeyEnv,
			Model:          oc.Model,
			Timeout:        time.Duration(oc.TimeoutSecs) * time.Second,
			RequestsPerSec: oc.RequestsPerSec,
			Burst:          oc.Burst,
		}, log)
	default:
		return nil, errors.Newf("unknown embedder type: %s", cfg.Type)
	}
}

// Workers returns the ingestion parallelism suited to the embedder.
// TF-IDF is CPU bound and cheap; remote embedders use the configured pool.
func Workers(cfg config.EmbedderConfig) int {
	if cfg.Type == "openai" && cfg.OpenAI != nil && cfg.OpenAI.Workers > 0 {
		return cfg.OpenAI.Workers
	}
	return 4
}
