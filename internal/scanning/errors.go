package scanning

import (
	"errors"
	"fmt"
)

// CredentialHelpURL is where a new Gemini API key can be issued
const CredentialHelpURL = "https://aistudio.google.com/app/apikey"

// ErrMissingCredential is the cause of a CredentialError raised before any call was made
var ErrMissingCredential = errors.New("no api credential configured")

// CredentialError reports a missing, invalid or expired API credential.
// It is user recoverable by supplying a new credential and never retried.
type CredentialError struct {
	HelpURL string
	Err     error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("invalid api credential: %v", e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// ServiceError reports a transport, quota or unknown failure of the inference service
type ServiceError struct {
	Backend string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("inference service error: %v", e.Err)
	}
	return fmt.Sprintf("%s service error: %v", e.Backend, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Reason classifies why a reply could not become a record set
type Reason string

const (
	ReasonMalformedJSON   Reason = "malformed_json"
	ReasonUnexpectedShape Reason = "unexpected_shape"
)

// ValidationError reports that the service answered but the answer was unusable
type ValidationError struct {
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unusable reply: %s", e.Reason)
	}
	return fmt.Sprintf("unusable reply: %s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ImageError reports that the uploaded image could not be decoded or re-encoded as PNG
type ImageError struct {
	Err error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("preparing image: %v", e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

func newCredentialError(err error) *CredentialError {
	return &CredentialError{HelpURL: CredentialHelpURL, Err: err}
}
