package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/docchat/internal/extract"
	"github.com/hyperjump/docchat/internal/fetch"
	"github.com/hyperjump/docchat/internal/session"
	"github.com/hyperjump/docchat/internal/upload"
	"go.uber.org/zap"
)

const maxMultipartMemory = 8 << 20

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.logger.Debug("session created", zap.String("session", sess.ID()))
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": sess.ID()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Delete(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Debug("session deleted", zap.String("session", id))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !extract.Supported(ext) {
		s.respondIngestError(w, &extract.UnsupportedFormatError{Ext: ext})
		return
	}

	path, err := s.spool.Save(header.Filename, file)
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	defer func() {
		if err := s.spool.Remove(path); err != nil {
			s.logger.Warn("remove upload failed", zap.String("path", path), zap.Error(err))
		}
	}()

	if err := sess.Ingest(r.Context(), session.Source{Path: path, Name: header.Filename}); err != nil {
		s.respondIngestError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, newSessionResponse(sess))
}

type crawlRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := sess.IngestURL(r.Context(), req.URL); err != nil {
		s.respondIngestError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, newSessionResponse(sess))
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := sess.Ask(r.Context(), req.Text)
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrNoContext):
		s.respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.logger.Error("ask failed", zap.String("session", sess.ID()), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, newMessageResponse(msg))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	history := sess.History()
	out := make([]messageResponse, 0, len(history))
	for _, m := range history {
		out = append(out, newMessageResponse(m))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"sessions": s.sessions.Count(),
		"model":    s.model,
		"time":     time.Now().UTC().Format(time.RFC3339),
	}
	if s.spool != nil {
		if n, err := s.spool.UsageBytes(); err == nil {
			resp["upload_usage_bytes"] = n
		} else {
			s.logger.Error("status: upload usage failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// session resolves the {id} URL parameter, writing 404 when unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) respondIngestError(w http.ResponseWriter, err error) {
	var ufe *extract.UnsupportedFormatError
	switch {
	case errors.As(err, &ufe):
		s.respondError(w, http.StatusUnsupportedMediaType, ufe.Error())
	case errors.Is(err, fetch.ErrFetchFailed):
		s.respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, upload.ErrTooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, upload.ErrInvalidName), errors.Is(err, session.ErrInvalidSource):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
