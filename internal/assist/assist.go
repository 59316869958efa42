// Package assist drafts note content through a hosted text-generation
// service. Models are tried in order under a Policy: rate limits and server
// errors are retried, other failures fall through to the next model, and
// authorization failures stop at once.
package assist

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/CageChen/cloverdrive/internal/logging"
	"github.com/CageChen/cloverdrive/internal/markdown"
)

// DefaultModels is the preference order used when none is configured.
var DefaultModels = []string{
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-1.0-pro",
}

const systemInstruction = "System Instruction: You are CloverAI Agent, a premium AI writing assistant. " +
	"Format your response using HTML (<h3>, <p>, <strong>, <ul>, <li>). Do not use Markdown. " +
	"Start immediately with the content."

// Result is a rendered generation.
type Result struct {
	HTML  string `json:"html"`
	Title string `json:"title,omitempty"`
	Model string `json:"model"`
}

// Service runs prompts through a Backend under a Policy.
type Service struct {
	backend Backend
	policy  Policy
	parser  *markdown.Parser
	log     *zap.Logger
}

// NewService creates a Service. An empty policy backend list falls back to
// DefaultModels.
func NewService(backend Backend, policy Policy) *Service {
	if len(policy.Backends) == 0 {
		policy.Backends = DefaultModels
	}
	return &Service{
		backend: backend,
		policy:  policy,
		parser:  markdown.NewParser(),
		log:     logging.Named("assist"),
	}
}

// Generate answers prompt as an HTML fragment.
func (s *Service) Generate(ctx context.Context, prompt, apiKey string) (*Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingKey
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	full := systemInstruction + "\n\nUser Request: " + prompt
	text, model, err := Run(ctx, s.policy, func(ctx context.Context, model string) (string, error) {
		s.log.Debug("attempting model", logging.String("model", model))
		text, err := s.backend.Generate(ctx, apiKey, model, full)
		if err != nil {
			s.log.Warn("model failed", logging.String("model", model), logging.Err(err))
		}
		return text, err
	})
	if err != nil {
		s.log.Error("generation failed", logging.String("model", model), logging.Err(err))
		return nil, err
	}

	doc, err := s.parser.Render(text)
	if err != nil {
		return nil, err
	}
	return &Result{HTML: doc.HTML, Title: doc.Title, Model: model}, nil
}
