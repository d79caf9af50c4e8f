package scanning

import "context"

// Record is one extracted contact row. Field order is fixed: phone, name, note.
type Record struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Note  string `json:"note"`
}

// RecordSet is an ordered sequence of records sharing the Record schema
type RecordSet []Record

// Field names in display and export order
const (
	FieldPhone = "phone"
	FieldName  = "name"
	FieldNote  = "note"
)

// Fields returns the column names of a record in their fixed order
func Fields() []string {
	return []string{FieldPhone, FieldName, FieldNote}
}

// Values returns the record's values in field order
func (r Record) Values() []string {
	return []string{r.Phone, r.Name, r.Note}
}

// Clone returns a copy of the set that shares no backing array with s
func (s RecordSet) Clone() RecordSet {
	if s == nil {
		return RecordSet{}
	}
	out := make(RecordSet, len(s))
	copy(out, s)
	return out
}

// Scanner defines the interface for contact sheet extraction
type Scanner interface {
	// Extract turns an image into a record set. Errors are always one of
	// *CredentialError, *ServiceError, *ValidationError or *ImageError.
	Extract(ctx context.Context, imageData []byte, contentType string, credential string) (RecordSet, error)
	// Enabled reports whether Extract can run with credential
	Enabled(credential string) bool
	// Backend names the inference backend
	Backend() string
	// Close releases resources held by the scanner
	Close() error
}

// Model is an inference backend that answers a single multimodal request
// (a PNG image plus an instruction) with free text.
type Model interface {
	Generate(ctx context.Context, pngData []byte, prompt string, credential string) (string, error)
	// Name identifies the backend in logs and status output
	Name() string
	// RequiresCredential reports whether calls without a credential are refused
	RequiresCredential() bool
	Close() error
}
