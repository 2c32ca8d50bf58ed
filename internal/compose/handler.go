package handler

import (
	"encoding/json"
	"net/http"

	"deshhindi/internal/compose/model"
	"deshhindi/internal/compose/service"
	"deshhindi/internal/editor"
)

type ComposeHandler struct {
	Service *service.ComposeService
}

func NewComposeHandler(service *service.ComposeService) *ComposeHandler {
	return &ComposeHandler{Service: service}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *ComposeHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req model.SuggestRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, h.Service.Suggest(r.Context(), req.Caret))
}

func (h *ComposeHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req model.ApplyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Suggestion == "" {
		http.Error(w, "Suggestion is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.Service.Apply(req))
}

func (h *ComposeHandler) Key(w http.ResponseWriter, r *http.Request) {
	var req model.KeyRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, h.Service.Key(r.Context(), req))
}

func (h *ComposeHandler) Dictate(w http.ResponseWriter, r *http.Request) {
	var req model.DictateRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, h.Service.Dictate(r.Context(), req))
}

func (h *ComposeHandler) DictationConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mode, err := editor.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.Service.DictationConfig(mode))
}
