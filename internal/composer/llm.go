package composer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"bimrag/internal/config"
	"bimrag/internal/logger"
)

const promptTemplate = `You are an expert Building Information Modeling (BIM) assistant that helps users understand building models.
Answer the question based ONLY on the provided context about the building model.
If you cannot answer based on the context, say so clearly.

CONTEXT:
%s

QUESTION:
%s

ANSWER:
`

// LLM composes answers with a language model.
type LLM struct {
	name      string
	model     llms.Model
	maxTokens int
	log       *zap.Logger
}

// NewLLM wraps an already constructed model.
func NewLLM(name string, model llms.Model, maxTokens int, log *zap.Logger) *LLM {
	return &LLM{
		name:      name,
		model:     model,
		maxTokens: maxTokens,
		log:       logger.OrNop(log).With(zap.String(logger.FieldComponent, "composer"), zap.String(logger.FieldBackend, name)),
	}
}

func (c *LLM) Name() string { return c.name }

// Compose sends the numbered context, or the rendered report, with the query.
func (c *LLM) Compose(ctx context.Context, req Request) (string, error) {
	contextText := FormatContext(req.Result.Matches)
	if req.Report != nil {
		contextText = RenderReport(req.Report)
	}
	prompt := buildPrompt(contextText, req.Query)

	var opts []llms.CallOption
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	c.log.Debug("generating answer", zap.String(logger.FieldQuery, req.Query), zap.Int(logger.FieldCount, len(req.Result.Matches)))
	out, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt, opts...)
	if err != nil {
		return "", errors.Wrapf(err, "%s generate", c.name)
	}
	return strings.TrimSpace(out), nil
}

func buildPrompt(contextText, query string) string {
	return fmt.Sprintf(promptTemplate, contextText, query)
}

// New builds the composer selected by cfg. The extractive composer needs no
// credentials; model-backed composers fail when theirs are missing.
func New(ctx context.Context, cfg config.ComposerConfig, log *zap.Logger) (Composer, error) {
	switch cfg.Type {
	case "", "extractive":
		return NewExtractive(), nil
	case "gemini":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, errors.WithHintf(errors.Newf("gemini composer: %s is not set", cfg.APIKeyEnv),
				"set %s in the environment or .env, or use composer.type: extractive", cfg.APIKeyEnv)
		}
		model, err := googleai.New(ctx, googleai.WithAPIKey(key), googleai.WithDefaultModel(cfg.Model))
		if err != nil {
			return nil, errors.Wrap(err, "create gemini client")
		}
		return NewLLM("gemini", model, cfg.MaxTokens, log), nil
	case "ollama":
		model, err := ollama.New(ollama.WithServerURL(cfg.ServerURL), ollama.WithModel(cfg.Model))
		if err != nil {
			return nil, errors.Wrap(err, "create ollama client")
		}
		return NewLLM("ollama", model, cfg.MaxTokens, log), nil
	case "openai":
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, errors.WithHintf(errors.Newf("openai composer: %s is not set", cfg.APIKeyEnv),
				"set %s in the environment or .env, or use composer.type: extractive", cfg.APIKeyEnv)
		}
		opts := []openai.Option{openai.WithToken(key), openai.WithModel(cfg.Model)}
		if cfg.ServerURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ServerURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, errors.Wrap(err, "create openai client")
		}
		return NewLLM("openai", model, cfg.MaxTokens, log), nil
	default:
		return nil, errors.Newf("unknown composer type: %s", cfg.Type)
	}
}
