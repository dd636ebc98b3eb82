package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// apiError carries an HTTP status and a user-facing message.
type apiError struct {
	status int
	msg    string
}

// saveUpload validates the multipart "file" part and writes it to the temp
// dir under a unique name. Validation happens before any file I/O. The
// caller owns the returned path and must remove it (removeTemp) on every
// exit path.
func (s *Server) saveUpload(r *http.Request) (path, filename string, aerr *apiError) {
	file, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			// A part named "file" with an empty filename parses as a plain
			// form value, so distinguish "no part" from "no file selected".
			if r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0 {
				return "", "", &apiError{http.StatusBadRequest, msgNoFileSelected}
			}
			return "", "", &apiError{http.StatusBadRequest, msgNoFilePart}
		}
		return "", "", &apiError{http.StatusBadRequest, err.Error()}
	}
	defer file.Close()

	if hdr.Filename == "" {
		return "", "", &apiError{http.StatusBadRequest, msgNoFileSelected}
	}
	if !allowedFile(hdr.Filename) {
		return "", "", &apiError{http.StatusBadRequest, msgPDFOnly}
	}

	filename = sanitizeFilename(hdr.Filename)
	path = filepath.Join(s.cfg.TempDir, uuidHex()+"_"+filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", &apiError{http.StatusInternalServerError, err.Error()}
	}
	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", "", &apiError{http.StatusInternalServerError, err.Error()}
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", "", &apiError{http.StatusInternalServerError, err.Error()}
	}
	return path, filename, nil
}

// removeTemp deletes a temp upload. Deletion is best-effort; a failure is
// logged and never surfaced to the client.
func (s *Server) removeTemp(path string) {
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("temp file delete failed")
	}
}

// allowedFile reports whether the name carries a .pdf extension.
func allowedFile(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".pdf"
}

// sanitizeFilename strips any directory components and replaces characters
// outside letters, digits, '.', '-' and '_' so the name is safe to join
// into the temp dir.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func uuidHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
