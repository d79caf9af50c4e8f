package scanning

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Extractor implements Scanner on top of an inference Model. It owns the
// prompt contract, the PNG normalization of uploads and the mapping of every
// failure into the error taxonomy.
type Extractor struct {
	model Model
}

// NewExtractor creates an Extractor that sends requests to model
func NewExtractor(model Model) *Extractor {
	return &Extractor{model: model}
}

// Prompt returns the instruction sent with every image
func (e *Extractor) Prompt() string {
	return contactScanPrompt
}

// Backend names the configured inference backend
func (e *Extractor) Backend() string {
	return e.model.Name()
}

// Enabled reports whether extraction can run with the given credential.
// A missing credential disables extraction without being a failure.
func (e *Extractor) Enabled(credential string) bool {
	return !e.model.RequiresCredential() || strings.TrimSpace(credential) != ""
}

// Extract converts the image to PNG, asks the model for the contact rows and
// turns the free-text reply into a record set. It blocks for the duration of
// the outbound call; cancellation comes from ctx only.
func (e *Extractor) Extract(ctx context.Context, imageData []byte, contentType string, credential string) (RecordSet, error) {
	if e.model.RequiresCredential() && strings.TrimSpace(credential) == "" {
		return nil, newCredentialError(ErrMissingCredential)
	}

	pngData, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	reply, err := e.model.Generate(ctx, pngData, contactScanPrompt, credential)
	if err != nil {
		slog.Error("Inference call failed",
			"backend", e.model.Name(),
			"content_type", contentType,
			"file_size", len(imageData),
			"error", err,
		)
		return nil, tagged(e.model.Name(), err)
	}

	records, err := ParseReply(reply)
	if err != nil {
		slog.Warn("Unusable inference reply",
			"backend", e.model.Name(),
			"prompt_version", PromptVersion,
			"reply_size", len(reply),
			"error", err,
		)
		return nil, err
	}

	slog.Info("Extracted contacts", "backend", e.model.Name(), "rows", len(records))
	return records, nil
}

// Close closes the underlying model
func (e *Extractor) Close() error {
	return e.model.Close()
}

// tagged makes sure a backend failure leaves the client as a typed error
func tagged(backend string, err error) error {
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return credErr
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &ServiceError{Backend: backend, Err: err}
}
