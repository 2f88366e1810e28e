package validation

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"clipsight/config"
	"clipsight/errors"
)

// Recognized video MIME types. Anything else is rejected before any
// network activity.
var allowedMimeTypes = map[string]bool{
	"video/mp4":        true,
	"video/webm":       true,
	"video/quicktime":  true,
	"video/x-matroska": true,
	"video/mpeg":       true,
	"video/x-msvideo":  true,
	"video/3gpp":       true,
}

// Browsers sometimes hand over application/octet-stream; fall back to the
// file extension in that case.
var allowedExtensions = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".avi":  "video/x-msvideo",
	".3gp":  "video/3gpp",
}

type Validator struct {
	config *config.Config
}

func NewValidator(cfg *config.Config) *Validator {
	return &Validator{config: cfg}
}

// ValidateVideo checks the selected file's type and size. It returns the
// effective MIME type so callers can normalize octet-stream uploads.
func (v *Validator) ValidateVideo(filename, mimeType string, size int64) (string, error) {
	const op = "Validator.ValidateVideo"

	if size <= 0 {
		return "", errors.Precondition(op, nil, "Video file is empty")
	}

	maxBytes := v.config.Analysis.MaxUploadBytes
	if size > maxBytes {
		return "", errors.Precondition(op, nil, fmt.Sprintf(
			"Video is %d bytes; the maximum supported size is %d bytes",
			size, maxBytes,
		))
	}

	effective := normalizeMimeType(filename, mimeType)
	if !allowedMimeTypes[effective] {
		return "", errors.Precondition(op, nil, fmt.Sprintf(
			"Unsupported file type %q; please select a video file", mimeType,
		))
	}

	return effective, nil
}

func normalizeMimeType(filename, mimeType string) string {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	if allowedMimeTypes[mimeType] {
		return mimeType
	}

	if mimeType == "" || mimeType == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(filename))
		if mapped, ok := allowedExtensions[ext]; ok {
			return mapped
		}
	}

	return mimeType
}

// RequestValidationOpts holds options for request validation
type RequestValidationOpts struct {
	MaxContentLength int64
	AllowedMethods   []string
	RequireJSON      bool
}

// ValidateRequest validates HTTP requests
func (v *Validator) ValidateRequest(r *http.Request, opts RequestValidationOpts) error {
	const op = "Validator.ValidateRequest"

	// Method validation
	if len(opts.AllowedMethods) > 0 {
		methodAllowed := false
		for _, method := range opts.AllowedMethods {
			if r.Method == method {
				methodAllowed = true
				break
			}
		}
		if !methodAllowed {
			return errors.Precondition(op, nil, fmt.Sprintf("Method %s not allowed", r.Method))
		}
	}

	// Content type validation
	if opts.RequireJSON {
		if contentType := r.Header.Get("Content-Type"); !strings.Contains(contentType, "application/json") {
			return errors.Precondition(op, nil, "Content-Type must be application/json")
		}
	}

	// Content length validation
	if opts.MaxContentLength > 0 && r.ContentLength > opts.MaxContentLength {
		return errors.Precondition(op, nil, "Request body too large")
	}

	return nil
}
