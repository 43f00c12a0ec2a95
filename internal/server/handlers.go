package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/pdf-inquiry/internal/auth"
	"github.com/ziadkadry99/pdf-inquiry/internal/blobstore"
	"github.com/ziadkadry99/pdf-inquiry/internal/conversation"
	"github.com/ziadkadry99/pdf-inquiry/internal/fingerprint"
	"github.com/ziadkadry99/pdf-inquiry/internal/index"
	"github.com/ziadkadry99/pdf-inquiry/internal/rag"
	"github.com/ziadkadry99/pdf-inquiry/internal/segment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		xerr *segment.ExtractionError
		eerr *index.EmbeddingError
	)
	switch {
	case errors.As(err, &xerr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &eerr):
		return http.StatusBadGateway
	case errors.Is(err, rag.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, rag.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrEmptyQuestion), errors.Is(err, rag.ErrEmptyName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func pathFingerprint(w http.ResponseWriter, r *http.Request) (fingerprint.Fingerprint, bool) {
	fp, err := fingerprint.Parse(chi.URLParam(r, "fp"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return fp, true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.Signup
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.users.Register(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordMismatch), errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.fail(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, u)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token, err := s.tokens.Issue(u.Username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.rag.Documents(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if docs == nil {
		docs = []blobstore.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// uploadResult is the per-file outcome of an upload request.
type uploadResult struct {
	*rag.IngestResult
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

type uploadResponse struct {
	Results []uploadResult `json:"results"`
}

// handleUpload ingests every file of the "files" form field. Each file
// succeeds or fails on its own; the response is 200 unless every file
// failed, in which case it carries the first failure's status.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	resp := uploadResponse{Results: make([]uploadResult, 0, len(headers))}
	status := http.StatusOK
	ok := 0
	for _, fh := range headers {
		data, err := readPart(fh)
		var res *rag.IngestResult
		if err == nil {
			res, err = s.rag.Ingest(r.Context(), data, fh.Filename)
		}
		if err != nil {
			code := statusFor(err)
			if ok == 0 && status == http.StatusOK {
				status = code
			}
			s.logger.Warn("upload failed", "filename", fh.Filename, "status", code, "error", err)
			resp.Results = append(resp.Results, uploadResult{
				IngestResult: &rag.IngestResult{Filename: fh.Filename},
				Status:       code,
				Error:        err.Error(),
			})
			continue
		}
		ok++
		resp.Results = append(resp.Results, uploadResult{IngestResult: res, Status: http.StatusOK})
	}
	if ok > 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}
	return data, nil
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	fp, ok := pathFingerprint(w, r)
	if !ok {
		return
	}
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply, err := s.rag.Ask(r.Context(), username(r), fp, req.Question)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	fp, ok := pathFingerprint(w, r)
	if !ok {
		return
	}
	reply, err := s.rag.Summarize(r.Context(), username(r), fp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.rag.Conversations(r.Context(), username(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

// handleOpenConversation returns the turns and indexes the document so
// that follow-up questions can be asked.
func (s *Server) handleOpenConversation(w http.ResponseWriter, r *http.Request) {
	fp, ok := pathFingerprint(w, r)
	if !ok {
		return
	}
	view, err := s.rag.OpenConversation(r.Context(), rag.NewSession(username(r)), fp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if view.Turns == nil {
		view.Turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, view)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	fp, ok := pathFingerprint(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	renamed, err := s.rag.Rename(r.Context(), username(r), fp, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"renamed": renamed})
}

var exportContentTypes = map[rag.Format]string{
	rag.FormatText: "text/plain; charset=utf-8",
	rag.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	fp, ok := pathFingerprint(w, r)
	if !ok {
		return
	}
	format, err := rag.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	name, err := s.rag.Export(r.Context(), &buf, username(r), fp, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", exportContentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
