package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"deshhindi/internal/wpm/model"
	"deshhindi/internal/wpm/service"
	"deshhindi/middleware"
)

type WPMHandler struct {
	Service *service.WPMService
	Now     func() time.Time
}

func NewWPMHandler(service *service.WPMService) *WPMHandler {
	return &WPMHandler{Service: service, Now: time.Now}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *WPMHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h.Service.Start(middleware.UserID(r), h.Now()))
}

func (h *WPMHandler) Input(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	var req model.InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run, err := h.Service.Input(middleware.UserID(r), id, req.Value, h.Now())
	switch {
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, service.ErrFinished):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, run)
}

func (h *WPMHandler) Results(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	results, err := h.Service.Results(middleware.UserID(r))
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, results)
}
