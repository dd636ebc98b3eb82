package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hyperifyio/goregistry/internal/extract"
	"github.com/hyperifyio/goregistry/internal/pdfdoc"
)

func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	if !s.caps.PDF {
		writeError(w, http.StatusInternalServerError, msgPDFUnavailable)
		return
	}
	path, filename, aerr := s.saveUpload(r)
	if aerr != nil {
		writeError(w, aerr.status, aerr.msg)
		return
	}
	defer s.removeTemp(path)

	doc, err := pdfdoc.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer doc.Close()

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":     filename,
		"text_content": doc.AllText(),
	})
}

type imageInfo struct {
	ImageID  int    `json:"image_id"`
	Filename string `json:"filename"`
	Page     int    `json:"page"`
}

func (s *Server) handleExtractImages(w http.ResponseWriter, r *http.Request) {
	if !s.caps.PDF {
		writeError(w, http.StatusInternalServerError, msgPDFUnavailable)
		return
	}
	path, filename, aerr := s.saveUpload(r)
	if aerr != nil {
		writeError(w, aerr.status, aerr.msg)
		return
	}
	defer s.removeTemp(path)

	doc, err := pdfdoc.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer doc.Close()

	infos := []imageInfo{}
	for page := 0; page < doc.PageCount(); page++ {
		images, err := doc.PageImages(page)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for i, img := range images {
			ext := img.FileType
			if ext == "" {
				ext = "png"
			}
			name := fmt.Sprintf("%s_page%d_img%d.%s", uuidHex(), page+1, i+1, ext)
			if err := os.WriteFile(filepath.Join(s.cfg.ImagesDir, name), img.Data, 0o644); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			infos = append(infos, imageInfo{ImageID: len(infos) + 1, Filename: name, Page: page + 1})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":    filename,
		"image_count": len(infos),
		"images":      infos,
	})
}

func (s *Server) handleExtractStructured(w http.ResponseWriter, r *http.Request) {
	if !s.caps.PDF {
		writeError(w, http.StatusInternalServerError, msgPDFUnavailable)
		return
	}
	path, filename, aerr := s.saveUpload(r)
	if aerr != nil {
		writeError(w, aerr.status, aerr.msg)
		return
	}
	defer s.removeTemp(path)

	doc, err := pdfdoc.Open(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer doc.Close()

	rec := extract.Extract(doc.AllText(), filename, doc.PageCount())
	writeJSON(w, http.StatusOK, rec)
}
