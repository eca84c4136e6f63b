package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terrainworks/worldapi/internal/models"
	"github.com/terrainworks/worldapi/internal/srtm"
	"github.com/terrainworks/worldapi/internal/world"
)

// demStatusResponse reports the ingestion state of one DEM tile.
type demStatusResponse struct {
	TileKey   string               `json:"tile_key"`
	Status    models.DemTileStatus `json:"status"`
	LastError *string              `json:"last_error,omitempty"`
}

// GetDemStatus reports the DEM tile covering (lat, lon) for a world
// version. Asking about an unknown tile implicitly enqueues it: the
// missing row is created and the download worker picks it up.
func (h *Handlers) GetDemStatus(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		RespondBadRequest(w, r, "lat query parameter is required")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		RespondBadRequest(w, r, "lon query parameter is required")
		return
	}

	tileKey, err := srtm.ComputeTileName(lat, lon)
	if err != nil {
		RespondBadRequest(w, r, "coordinates out of range")
		return
	}

	row, err := h.dem.GetOrCreateMissing(r.Context(), version, tileKey)
	if err != nil {
		if errors.Is(err, world.ErrUnknownVersion) {
			RespondNotFound(w, r, "unknown world version")
			return
		}
		slog.Error("dem status lookup failed", "tile_key", tileKey, "error", err)
		RespondInternalError(w, r)
		return
	}

	RespondJSON(w, r, http.StatusOK, demStatusResponse{
		TileKey:   row.TileKey,
		Status:    row.Status,
		LastError: row.LastError,
	})
}
