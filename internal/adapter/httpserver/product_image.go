package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

const maxProductImageBytes = 5 * 1024 * 1024 // 5 MiB decoded

type uploadProductImageRequest struct {
	Base64   string `json:"base64" validate:"required"`
	MimeType string `json:"mimeType,omitempty"`
}

// UploadProductImageHandler handles POST /upload-product-image.
func (s *Server) UploadProductImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("x-user-id"))
		r.Body = http.MaxBytesReader(w, r.Body, (maxProductImageBytes/3)*4+4096) // base64 inflates ~4/3
		var req uploadProductImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: base64 required", domain.ErrInvalidArgument), nil)
			return
		}

		data, err := base64.StdEncoding.DecodeString(req.Base64)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid base64", domain.ErrInvalidArgument), nil)
			return
		}
		if len(data) > maxProductImageBytes {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_ = json.NewEncoder(w).Encode(errorEnvelope{Error: apiError{
				Code:    "INVALID_ARGUMENT",
				Message: "decoded image exceeds 5 MiB",
			}})
			return
		}

		detected := mimetype.Detect(data)
		ext, ok := imageExtFor(detected.String())
		if !ok {
			writeError(w, r, fmt.Errorf("%w: unsupported image type %s", domain.ErrInvalidArgument, detected.String()), nil)
			return
		}

		url, err := s.Images.Put(r.Context(), userID, ext, data)
		if err != nil {
			writeError(w, r, fmt.Errorf("product image store: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"url": url})
	}
}

func imageExtFor(mime string) (string, bool) {
	switch mime {
	case "image/jpeg":
		return "jpg", true
	case "image/png":
		return "png", true
	default:
		return "", false
	}
}
