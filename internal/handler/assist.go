package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CageChen/cloverdrive/internal/assist"
	"github.com/CageChen/cloverdrive/internal/logging"
)

// Generator produces HTML content for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, apiKey string) (*assist.Result, error)
}

type assistRequest struct {
	Prompt string `json:"prompt"`
	APIKey string `json:"apiKey"`
}

// AssistHandler handles content generation requests
type AssistHandler struct {
	gen        Generator
	defaultKey string
}

// NewAssistHandler creates a handler. defaultKey is used when a request
// carries no key of its own.
func NewAssistHandler(gen Generator, defaultKey string) *AssistHandler {
	return &AssistHandler{gen: gen, defaultKey: defaultKey}
}

// Generate runs the prompt through the generation fallback chain
func (h *AssistHandler) Generate(c *gin.Context) {
	var req assistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	key := req.APIKey
	if key == "" {
		key = h.defaultKey
	}

	res, err := h.gen.Generate(c.Request.Context(), req.Prompt, key)
	if err != nil {
		log := logging.WithContext(c.Request.Context())
		switch {
		case errors.Is(err, assist.ErrEmptyPrompt):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, assist.ErrAuthorization):
			log.Warn("generation rejected", logging.Err(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		default:
			log.Error("generation failed", logging.Err(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, res)
}
