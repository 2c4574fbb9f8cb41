package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

// SchemaHint tells the client what shape of response the caller will accept.
// A non-zero Root asks for a JSON response.
type SchemaHint struct {
	Root types.Kind
}

// Client is the generative-model boundary consumed by the pipeline.
type Client interface {
	// Complete sends prompt under systemInstruction and returns the raw text.
	// Content-policy rejections are returned as *types.BlockedContentError,
	// everything else as *types.TransportError or *types.DecodeError.
	Complete(ctx context.Context, prompt, systemInstruction string, hint SchemaHint) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client. A missing API key is a
// ConfigurationError.
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, &types.ConfigurationError{Field: "api_key", Message: "API key not found (set GEMINI_API_KEY)"}
	}
	if config == nil {
		config = DefaultConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// Complete generates content for prompt.
func (c *GeminiClient) Complete(ctx context.Context, prompt, systemInstruction string, hint SchemaHint) (string, error) {
	model := c.client.GenerativeModel(c.config.Model)
	gen := c.config.Generation
	model.SetTemperature(gen.Temperature)
	model.SetTopP(gen.TopP)
	model.SetTopK(gen.TopK)
	model.SetMaxOutputTokens(gen.MaxOutputTokens)
	model.ResponseMIMEType = gen.ResponseMIMEType
	if hint.Root != 0 {
		model.ResponseMIMEType = "application/json"
	}
	if systemInstruction != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemInstruction))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyError(err)
	}

	return extractTextFromResponse(resp)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// classifyError maps Gemini SDK errors onto the pipeline's error taxonomy.
func classifyError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &types.BlockedContentError{Reason: blockedReason(blocked), Cause: err}
	}
	return &types.TransportError{Message: "failed to generate content", Cause: err}
}

func blockedReason(e *genai.BlockedError) string {
	switch {
	case e.PromptFeedback != nil:
		return "prompt: " + e.PromptFeedback.BlockReason.String()
	case e.Candidate != nil:
		return "candidate: " + e.Candidate.FinishReason.String()
	default:
		return "unspecified"
	}
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &types.DecodeError{Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &types.DecodeError{Message: "no content in response"}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", &types.DecodeError{Message: "no text parts in response"}
	}

	return strings.Join(parts, ""), nil
}
