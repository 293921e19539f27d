package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/michaelbrown/crucible/internal/artifacts"
	"github.com/michaelbrown/crucible/internal/history"
	"github.com/michaelbrown/crucible/internal/interp"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Execution handlers ---

type executeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "'code' is required")
		return
	}

	result, err := s.interp.Execute(r.Context(), req.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.interp.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// --- File handlers ---

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files := s.interp.ScanWorkspace()

	// The placeholder keeps the workspace directory in version control; it
	// is not an artifact.
	shown := make([]artifacts.FileRecord, 0, len(files))
	for _, f := range files {
		if f.Filename == artifacts.PlaceholderName {
			continue
		}
		shown = append(shown, f)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_count": len(shown),
		"files":      shown,
	})
}

// fileEnvelope is the single-file fetch response: utf-8 for the fixed text
// extension set, base64 for everything else.
type fileEnvelope struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	rec, err := s.interp.GetFile(filename)
	if err != nil {
		if errors.Is(err, interp.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found: "+filename)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newFileEnvelope(rec))
}

func newFileEnvelope(rec *artifacts.FileRecord) fileEnvelope {
	env := fileEnvelope{
		Filename: rec.Filename,
		Type:     string(rec.Type),
	}
	if artifacts.IsTextExt(filepath.Ext(rec.Filename)) {
		env.Encoding = "utf-8"
		env.Data = rec.Content
	} else {
		env.Encoding = "base64"
		env.Data = rec.ContentBase64
	}
	return env
}

// --- History handlers ---

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []history.Record{})
		return
	}

	opts := history.ListOptions{}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	records, err := s.store.ListExecutions(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
