package api

import (
	"net/http"
	"time"

	"github.com/goodtune/flowtrack/internal/analytics"
	"github.com/goodtune/flowtrack/internal/service"
	"github.com/goodtune/flowtrack/internal/storage"
	"github.com/rs/zerolog"
)

type trackingHandler struct {
	tracker *service.Tracker
	logger  zerolog.Logger
}

func newTrackingHandler(tracker *service.Tracker, logger zerolog.Logger) *trackingHandler {
	return &trackingHandler{
		tracker: tracker,
		logger:  logger.With().Str("handler", "tracking").Logger(),
	}
}

func (h *trackingHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.SessionInfo())
}

func (h *trackingHandler) StopAll(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.StopAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Failed to stop tracking")
		writeError(w, statusFor(err), "Failed to stop tracking")
		return
	}
	writeJSON(w, http.StatusOK, h.tracker.SessionInfo())
}

// Entries handles GET /api/entries?spaceId=&dateFrom=&dateTo=
func (h *trackingHandler) Entries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.EntryFilter{
		SpaceID:  q.Get("spaceId"),
		DateFrom: q.Get("dateFrom"),
		DateTo:   q.Get("dateTo"),
	}
	for _, date := range []string{filter.DateFrom, filter.DateTo} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(storage.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "Dates must use YYYY-MM-DD")
			return
		}
	}

	entries, err := h.tracker.QueryEntries(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to query entries")
		writeError(w, statusFor(err), "Failed to retrieve entries")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *trackingHandler) Today(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tracker.TodayStats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute today's stats")
		writeError(w, statusFor(err), "Failed to retrieve today's stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Analytics handles GET /api/analytics?range=day|week|month&spaceId=
func (h *trackingHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := analytics.ParseRange(q.Get("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.tracker.Analytics(r.Context(), q.Get("spaceId"), rng)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *trackingHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.tracker.Settings(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load settings")
		writeError(w, statusFor(err), "Failed to retrieve settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *trackingHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings storage.AppSettings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	saved, err := h.tracker.SaveSettings(r.Context(), settings)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to save settings")
		writeError(w, statusFor(err), "Failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *trackingHandler) Installed(w http.ResponseWriter, r *http.Request) {
	apps, err := h.tracker.InstalledApplications(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to list installed applications")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *trackingHandler) Running(w http.ResponseWriter, r *http.Request) {
	apps, err := h.tracker.RunningApplications(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to list running applications")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *trackingHandler) Focused(w http.ResponseWriter, r *http.Request) {
	app, err := h.tracker.FocusedApplication(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if app == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
