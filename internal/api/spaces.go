package api

import (
	"net/http"

	"github.com/goodtune/flowtrack/internal/service"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// CreateSpaceRequest is the body of POST /api/spaces.
type CreateSpaceRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// SetActiveRequest is the body of PUT /api/spaces/{id}/active.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// ActiveResponse reports a space's activity flag after a change.
type ActiveResponse struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

type spaceHandler struct {
	tracker *service.Tracker
	logger  zerolog.Logger
}

func newSpaceHandler(tracker *service.Tracker, logger zerolog.Logger) *spaceHandler {
	return &spaceHandler{
		tracker: tracker,
		logger:  logger.With().Str("handler", "spaces").Logger(),
	}
}

func (h *spaceHandler) List(w http.ResponseWriter, r *http.Request) {
	spaces, err := h.tracker.ListSpaces(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list spaces")
		writeError(w, statusFor(err), "Failed to retrieve spaces")
		return
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (h *spaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	sp, err := h.tracker.GetSpace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (h *spaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSpaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sp, err := h.tracker.CreateSpace(r.Context(), req.Name, req.Color)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

// Update replaces a space. The id in the path wins over the body.
func (h *spaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var sp storage.TrackingSpace
	if err := decodeJSON(r, &sp); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sp.ID = mux.Vars(r)["id"]

	spaces, err := h.tracker.UpdateSpace(r.Context(), sp)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (h *spaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	spaces, err := h.tracker.DeleteSpace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (h *spaceHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	id := mux.Vars(r)["id"]

	active, err := h.tracker.SetActive(r.Context(), id, req.Active)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ActiveResponse{ID: id, Active: active})
}

func (h *spaceHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	active, err := h.tracker.Toggle(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ActiveResponse{ID: id, Active: active})
}
