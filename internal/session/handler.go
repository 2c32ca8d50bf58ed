package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
	_ "time/tzdata" // tz names resolve on hosts without a zoneinfo database

	"deshhindi/internal/session/model"
	"deshhindi/internal/session/service"
	"deshhindi/middleware"
	"deshhindi/pkg/logger"
)

type SessionHandler struct {
	Service *service.SessionService
	Now     func() time.Time
}

func NewSessionHandler(service *service.SessionService) *SessionHandler {
	return &SessionHandler{Service: service, Now: time.Now}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Database error", http.StatusInternalServerError)
	}
}

func requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := middleware.UserID(r)

	if r.URL.Query().Get("grouped") == "1" {
		// "Today" is the caller's calendar day.
		now := h.Now()
		if tz := r.URL.Query().Get("tz"); tz != "" {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				http.Error(w, "Invalid tz parameter", http.StatusBadRequest)
				return
			}
			now = now.In(loc)
		}

		groups, err := h.Service.Grouped(userID, now)
		if err != nil {
			logger.Sugar.Errorf("Handler: Failed to list grouped sessions: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, groups)
		return
	}

	sessions, err := h.Service.List(userID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list sessions: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, sessions)
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := h.Service.Create(middleware.UserID(r))
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sess)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	sess, err := h.Service.Get(middleware.UserID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, sess)
}

func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	var req model.UpdateTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.Service.UpdateText(middleware.UserID(r), id, req.Text)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to update session %s: %v", id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, sess)
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	resp, err := h.Service.Delete(middleware.UserID(r), id)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete session %s: %v", id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *SessionHandler) RefineSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	sess, err := h.Service.Refine(r.Context(), middleware.UserID(r), id)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to refine session %s: %v", id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, sess)
}

func (h *SessionHandler) ExportSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	resp, err := h.Service.Export(middleware.UserID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *SessionHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxImageBytes+1<<20)
	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "Missing or oversized image field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxImageBytes+1))
	if err != nil {
		http.Error(w, "Failed to read image", http.StatusBadRequest)
		return
	}

	sess, err := h.Service.InsertImage(middleware.UserID(r), id, data)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to insert image into %s: %v", id, err)
		writeError(w, err)
		return
	}
	writeJSON(w, sess)
}

func (h *SessionHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	switch r.Method {
	case http.MethodGet:
		p, err := h.Service.Preferences(userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
	case http.MethodPut:
		var req model.Preferences
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		p, err := h.Service.SavePreferences(userID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
