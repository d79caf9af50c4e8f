package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the model the original sheet extractor was tuned on
const DefaultGeminiModel = "gemini-2.0-flash-exp"

// Gemini implements Model using Google Gemini. The API key arrives with every
// call, so a client is created per request.
type Gemini struct {
	modelName string
	opts      []option.ClientOption
}

// NewGemini creates a new Gemini model. Extra client options, such as
// option.WithEndpoint, are appended to the per-call API key option.
func NewGemini(modelName string, opts ...option.ClientOption) *Gemini {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &Gemini{modelName: modelName, opts: opts}
}

// Name returns the backend name
func (g *Gemini) Name() string {
	return "gemini"
}

// RequiresCredential is always true for Gemini
func (g *Gemini) RequiresCredential() bool {
	return true
}

// Generate sends the PNG and the prompt as one multimodal request
func (g *Gemini) Generate(ctx context.Context, pngData []byte, prompt string, credential string) (string, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(credential)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", classifyGeminiError(fmt.Errorf("creating gemini client: %w", err))
	}
	defer client.Close()

	model := client.GenerativeModel(g.modelName)

	// genai.ImageData expects the format suffix, not the full MIME type
	resp, err := model.GenerateContent(ctx, genai.ImageData("png", pngData), genai.Text(prompt))
	if err != nil {
		return "", classifyGeminiError(fmt.Errorf("generating content: %w", err))
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &ServiceError{Backend: g.Name(), Err: errors.New("no response from gemini")}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

// Close is a no-op; clients are closed after each call
func (g *Gemini) Close() error {
	return nil
}

// classifyGeminiError separates rejected API keys from every other failure
func classifyGeminiError(err error) error {
	if isRejectedGeminiKey(err) {
		return newCredentialError(err)
	}
	return &ServiceError{Backend: "gemini", Err: err}
}

func isRejectedGeminiKey(err error) bool {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Reason() == "API_KEY_INVALID" {
			return true
		}
		if code := apiErr.HTTPCode(); code == http.StatusUnauthorized || code == http.StatusForbidden {
			return true
		}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if gErr.Code == http.StatusUnauthorized || gErr.Code == http.StatusForbidden {
			return true
		}
	}

	msg := err.Error()
	return strings.Contains(msg, "API key not valid") || strings.Contains(msg, "API_KEY_INVALID")
}
