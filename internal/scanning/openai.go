package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is a vision-capable chat model
const DefaultOpenAIModel = openai.GPT4o

// OpenAI implements Model using the OpenAI chat completions API or any
// compatible server. Like Gemini, the API key arrives with each call.
type OpenAI struct {
	modelName string
	baseURL   string
}

// NewOpenAI creates a new OpenAI model. An empty baseURL uses api.openai.com.
func NewOpenAI(modelName string, baseURL string) *OpenAI {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	return &OpenAI{modelName: modelName, baseURL: baseURL}
}

// Name returns the backend name
func (o *OpenAI) Name() string {
	return "openai"
}

// RequiresCredential is always true for OpenAI
func (o *OpenAI) RequiresCredential() bool {
	return true
}

// Generate sends the prompt and the PNG as a data URL in a single user message
func (o *OpenAI) Generate(ctx context.Context, pngData []byte, prompt string, credential string) (string, error) {
	cfg := openai.DefaultConfig(credential)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	req := openai.ChatCompletionRequest{
		Model: o.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData),
							Detail: openai.ImageURLDetailHigh,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
				},
			},
		},
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(fmt.Errorf("creating chat completion: %w", err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ServiceError{Backend: o.Name(), Err: errors.New("no response from openai")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; clients are built per call
func (o *OpenAI) Close() error {
	return nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return newCredentialError(err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden {
			return newCredentialError(err)
		}
	}
	return &ServiceError{Backend: "openai", Err: err}
}
