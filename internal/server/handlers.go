package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"scoreframe/internal/deps"
	"scoreframe/internal/journal"
	"scoreframe/internal/logging"
	"scoreframe/internal/pipeline"
	"scoreframe/internal/services"
)

type convertRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type convertResponse struct {
	RequestID       string  `json:"request_id"`
	Filename        string  `json:"filename"`
	VideoContent    string  `json:"video_content"`
	Title           string  `json:"title,omitempty"`
	NoteCount       int     `json:"note_count"`
	FrameCount      int     `json:"frame_count"`
	DurationSeconds float64 `json:"duration_seconds"`
	ElapsedMS       int64   `json:"elapsed_ms"`
}

type statusResponse struct {
	Running       bool        `json:"running"`
	Version       string      `json:"version"`
	PID           int         `json:"pid"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	JournalPath   string      `json:"journal_path,omitempty"`
	LockFilePath  string      `json:"lock_file_path"`
	Dependencies  []depStatus `json:"dependencies"`
}

type depStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

type jobPayload struct {
	RequestID       string  `json:"request_id"`
	Filename        string  `json:"filename"`
	Status          string  `json:"status"`
	ErrorCode       string  `json:"error_code,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	OutputName      string  `json:"output_name,omitempty"`
	FrameCount      int     `json:"frame_count,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	// The payload arrives base64-encoded inside JSON, so allow for the
	// encoding overhead on top of the raw upload limit.
	bodyLimit := s.cfg.Limits.MaxUploadBytes*2 + 4096
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusBadRequest, "validation_error", "request body exceeds upload limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "validation_error", "request body is not valid JSON")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "filename is required")
		return
	}
	payload, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "validation_error", "content is not valid base64")
		return
	}

	result, err := s.converter.Convert(r.Context(), pipeline.Request{
		Filename: req.Filename,
		Payload:  payload,
	})
	if err != nil {
		details := services.ErrorDetails(err)
		s.writeError(w, services.HTTPStatus(err), details.Code, details.Message)
		return
	}

	s.writeJSON(w, http.StatusOK, convertResponse{
		RequestID:       result.RequestID,
		Filename:        result.OutputName,
		VideoContent:    base64.StdEncoding.EncodeToString(result.Video),
		Title:           result.Title,
		NoteCount:       result.NoteCount,
		FrameCount:      result.FrameCount,
		DurationSeconds: result.DurationSeconds,
		ElapsedMS:       result.Elapsed.Milliseconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	statuses := deps.CheckBinaries(deps.ForConfig(s.cfg))
	converted := make([]depStatus, len(statuses))
	for i, status := range statuses {
		converted[i] = depStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		}
	}

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	s.writeJSON(w, http.StatusOK, statusResponse{
		Running:       true,
		Version:       s.version,
		PID:           os.Getpid(),
		UptimeSeconds: uptime,
		JournalPath:   s.store.Path(),
		LockFilePath:  s.cfg.LockFilePath(),
		Dependencies:  converted,
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	jobs := make([]jobPayload, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, jobFromEntry(entry))
	}
	s.writeJSON(w, http.StatusOK, map[string][]jobPayload{"jobs": jobs})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	requestID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if requestID == "" || strings.Contains(requestID, "/") {
		s.writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	entry, err := s.store.GetByRequestID(r.Context(), requestID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if entry == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, jobFromEntry(entry))
}

func jobFromEntry(entry *journal.Entry) jobPayload {
	return jobPayload{
		RequestID:       entry.RequestID,
		Filename:        entry.Filename,
		Status:          entry.Status,
		ErrorCode:       entry.ErrorCode,
		ErrorMessage:    entry.ErrorMessage,
		OutputName:      entry.OutputName,
		FrameCount:      entry.FrameCount,
		DurationSeconds: entry.DurationSeconds,
		CreatedAt:       entry.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       entry.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{"error": message, "code": code})
}
