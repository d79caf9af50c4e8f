package roster

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/roster-scan/internal/scanning"
)

// maxUploadSize bounds multipart uploads (high-resolution phone photos)
const maxUploadSize = int64(50 << 20)

// errorResponse is the JSON body of every failed API call
type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
	Help   string `json:"help,omitempty"`
}

// extractionResponse is the JSON body describing one cached record set
type extractionResponse struct {
	Identity string             `json:"identity"`
	Fields   []string           `json:"fields"`
	Records  scanning.RecordSet `json:"records"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError maps the error taxonomy onto status codes. The kind lets the
// page tell a bad credential from a failed call from an unusable answer.
func writeError(w http.ResponseWriter, err error) {
	var (
		credErr  *scanning.CredentialError
		svcErr   *scanning.ServiceError
		valErr   *scanning.ValidationError
		imgErr   *scanning.ImageError
		rangeErr *RowRangeError
	)

	switch {
	case errors.As(err, &credErr):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Kind: "credential", Help: credErr.HelpURL})
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Kind: "validation", Reason: string(valErr.Reason)})
	case errors.As(err, &svcErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: "service"})
	case errors.As(err, &imgErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "image"})
	case errors.As(err, &rangeErr):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Kind: "range"})
	case errors.Is(err, ErrUnknownField):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "field"})
	case errors.Is(err, ErrNotExtracted):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Kind: "not_found"})
	default:
		slog.Error("Unexpected error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Kind: "internal"})
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStatus reports whether extraction is enabled
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status(r.Header.Get("X-Api-Key")))
}

// handleUpload extracts contacts from an uploaded image
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, cache *Cache) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorMsg, Kind: "upload"})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No file was selected. Please choose an image to upload.", Kind: "upload"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error reading file. Please try again.", Kind: "upload"})
		return
	}

	upload := Upload{
		Filename:    header.Filename,
		Data:        data,
		ContentType: uploadContentType(header.Header.Get("Content-Type"), header.Filename),
		Credential:  r.FormValue("api_key"),
		Refresh:     r.FormValue("refresh") == "true",
	}

	identity, records, err := s.service.Extract(r.Context(), cache, upload)
	if err != nil {
		slog.Error("Error extracting contacts", "filename", header.Filename, "identity", identity, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, extractionResponse{Identity: identity, Fields: scanning.Fields(), Records: records})
}

// uploadContentType falls back to the file extension when the part has no type
func uploadContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}

// handleListExtractions returns the identities cached in the session
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request, cache *Cache) {
	ids, err := cache.Identities()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"identities": ids})
}

// handleGetExtraction returns the current record set of an identity
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request, cache *Cache) {
	identity := r.PathValue("identity")
	records, err := s.service.Records(cache, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, extractionResponse{Identity: identity, Fields: scanning.Fields(), Records: records})
}

// handleClearExtraction drops the cached record set so the next upload re-extracts
func (s *Server) handleClearExtraction(w http.ResponseWriter, r *http.Request, cache *Cache) {
	if err := cache.Clear(r.PathValue("identity")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddRow appends an empty row
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request, cache *Cache) {
	editor := cache.Editor(r.PathValue("identity"))
	if _, err := editor.AddRow(); err != nil {
		writeError(w, err)
		return
	}
	s.writeSnapshot(w, http.StatusCreated, editor)
}

// handleUpdateField sets one field of one row
func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request, cache *Cache) {
	row, ok := rowIndex(w, r)
	if !ok {
		return
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Kind: "request"})
		return
	}

	editor := cache.Editor(r.PathValue("identity"))
	if err := editor.UpdateField(row, req.Field, req.Value); err != nil {
		writeError(w, err)
		return
	}
	s.writeSnapshot(w, http.StatusOK, editor)
}

// handleDeleteRow removes one row
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request, cache *Cache) {
	row, ok := rowIndex(w, r)
	if !ok {
		return
	}

	editor := cache.Editor(r.PathValue("identity"))
	if err := editor.DeleteRow(row); err != nil {
		writeError(w, err)
		return
	}
	s.writeSnapshot(w, http.StatusOK, editor)
}

// handleExport streams the current record set as a download
func (s *Server) handleExport(format string) func(http.ResponseWriter, *http.Request, *Cache) {
	contentTypes := map[string]string{
		"csv":  "text/csv; charset=utf-8",
		"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
	return func(w http.ResponseWriter, r *http.Request, cache *Cache) {
		data, filename, err := s.service.Export(cache, r.PathValue("identity"), format)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentTypes[format])
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		w.Write(data)
	}
}

func (s *Server) writeSnapshot(w http.ResponseWriter, code int, editor *Editor) {
	records, err := editor.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, code, extractionResponse{Identity: editor.Identity(), Fields: scanning.Fields(), Records: records})
}

func rowIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	row, err := strconv.Atoi(r.PathValue("row"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Row must be an integer", Kind: "request"})
		return 0, false
	}
	return row, true
}
