package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Ollama implements Model using a local Ollama server.
// Recommended vision models for sheet scanning:
//   - qwen2-vl:7b (best OCR of the small models)
//   - llava:1.6
//   - llava:latest
//
// Ollama needs no credential; when one is given it is sent as a bearer token
// for servers running behind an authenticating proxy.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama model. The HTTP client has no timeout of its
// own: the caller's context bounds the call.
func NewOllama(baseURL string, modelName string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client:  &http.Client{},
	}
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Name returns the backend name
func (o *Ollama) Name() string {
	return "ollama"
}

// RequiresCredential is false: a local Ollama server takes no key
func (o *Ollama) RequiresCredential() bool {
	return false
}

// Generate sends the PNG and the prompt to /api/chat
func (o *Ollama) Generate(ctx context.Context, pngData []byte, prompt string, credential string) (string, error) {
	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading handwritten and printed sign-up sheets and extracting contact rows from them.",
			},
			{
				Role:    "user",
				Content: prompt,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ServiceError{Backend: o.Name(), Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", &ServiceError{Backend: o.Name(), Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &ServiceError{Backend: o.Name(), Err: fmt.Errorf("calling ollama API: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", newCredentialError(err)
		}
		return "", &ServiceError{Backend: o.Name(), Err: err}
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &ServiceError{Backend: o.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}
	if strings.TrimSpace(chatResp.Message.Content) == "" {
		return "", &ServiceError{Backend: o.Name(), Err: errors.New("empty response from ollama")}
	}

	return chatResp.Message.Content, nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
