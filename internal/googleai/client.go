// Package googleai provides a thin wrapper around the Google Gen AI SDK
// (Gemini API) for text generation and embeddings.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/insighthub/engine/internal/insighterrors"
)

var (
	// ErrEmptyInput is returned when Embed or Generate is called with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrEmptyCompletion is returned when the model produced no text.
	ErrEmptyCompletion = errors.New("googleai: empty completion")
)

const (
	defaultDimension      = 1536
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultTextGenModel   = "gemini-2.0-flash"
)

// Client calls the Gemini API via the Google Gen AI SDK. It serves both the
// text-generation and the embedding capability.
type Client struct {
	client         *genai.Client
	textGenModel   string
	embeddingModel string
	dimensions     int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithEmbeddingModel sets the embedding model name (e.g. gemini-embedding-001). Empty uses default.
func WithEmbeddingModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithTextGenModel sets the generation model name (e.g. gemini-2.0-flash). Empty uses default.
func WithTextGenModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.textGenModel = model
		}
	}
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client := &Client{
		client:         genaiClient,
		textGenModel:   defaultTextGenModel,
		embeddingModel: defaultEmbeddingModel,
		dimensions:     defaultDimension,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Dimensions returns the configured embedding vector length.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Generate runs a single-shot completion for the given prompt and returns the
// model's text output.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyInput
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.textGenModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generation: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}

	return text, nil
}

// Embed returns the embedding vector for the given text using the configured
// model. A response of the wrong length is a dimension-mismatch error, never
// silently reshaped.
func (c *Client) Embed(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}
	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0].Values
	if len(emb) != c.dimensions {
		return nil, insighterrors.NewDimensionMismatchError(len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	copy(out, emb)

	return out, nil
}
