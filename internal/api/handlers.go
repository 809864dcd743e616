package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/NikitaDmitryuk/libria-media-server/internal/database"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/go-chi/chi/v5"
)

const defaultListLimit = 50

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func toItem(d *database.Delivery) DeliveryItem {
	return DeliveryItem{
		ID:          d.ID,
		ChatID:      d.ChatID,
		Title:       d.Title,
		ContentHash: d.ContentHash,
		Status:      d.Status.String(),
		Detail:      d.Detail,
		Transcoded:  d.Transcoded,
		Original:    d.Original,
		Failed:      d.Failed,
		Removed:     d.Removed,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// listDeliveries serves GET /api/v1/deliveries?limit=N, newest first.
func (s *Server) listDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := s.journal.RecentDeliveries(r.Context(), limit)
	if err != nil {
		logutils.Log.WithError(err).WithField("request_id", RequestIDFromContext(r.Context())).
			Error("Failed to list deliveries")
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	items := make([]DeliveryItem, 0, len(list))
	for i := range list {
		items = append(items, toItem(&list[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

// getDelivery serves GET /api/v1/deliveries/{id} with its per-file records.
func (s *Server) getDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := s.journal.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrDeliveryNotFound) {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}
	if err != nil {
		logutils.Log.WithError(err).WithField("request_id", RequestIDFromContext(r.Context())).
			Error("Failed to load delivery")
		writeError(w, http.StatusInternalServerError, "failed to load delivery")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
