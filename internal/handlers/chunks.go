package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terrainworks/worldapi/internal/chunks"
	"github.com/terrainworks/worldapi/internal/models"
	"github.com/terrainworks/worldapi/internal/objectstore"
	"github.com/terrainworks/worldapi/internal/srtm"
	"github.com/terrainworks/worldapi/internal/world"
)

// chunkRequest is the parsed and validated chunk key from the URL.
type chunkRequest struct {
	version    string
	chunkX     int
	chunkZ     int
	resolution int
}

func parseChunkRequest(w http.ResponseWriter, r *http.Request) (chunkRequest, bool) {
	var req chunkRequest
	req.version = chi.URLParam(r, "version")

	var err error
	if req.chunkX, err = strconv.Atoi(chi.URLParam(r, "x")); err != nil {
		RespondBadRequest(w, r, "invalid chunk x coordinate")
		return req, false
	}
	if req.chunkZ, err = strconv.Atoi(chi.URLParam(r, "z")); err != nil {
		RespondBadRequest(w, r, "invalid chunk z coordinate")
		return req, false
	}

	resParam := r.URL.Query().Get("resolution")
	if resParam == "" {
		RespondBadRequest(w, r, "resolution query parameter is required")
		return req, false
	}
	if req.resolution, err = strconv.Atoi(resParam); err != nil || req.resolution < 1 {
		RespondBadRequest(w, r, "resolution must be a positive integer")
		return req, false
	}
	return req, true
}

// pendingBody tells a polling client why it got a 202.
type pendingBody struct {
	Status  string `json:"status"`
	TileKey string `json:"tile_key,omitempty"`
}

// GetChunk delivers chunk bytes, or a 202 while fabrication (or DEM
// ingestion) is in flight.
func (h *Handlers) GetChunk(w http.ResponseWriter, r *http.Request) {
	req, ok := parseChunkRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	status, err := h.chunks.GetChunkStatus(ctx, req.version, req.chunkX, req.chunkZ, models.LayerTerrain, req.resolution)
	if err != nil {
		h.respondChunkError(w, r, err)
		return
	}

	switch status {
	case chunks.StatusReady:
		h.serveReadyChunk(w, r, req)
	case chunks.StatusPending:
		respondPending(w, r, pendingBody{Status: "pending"})
	case chunks.StatusFailed:
		RespondError(w, r, http.StatusInternalServerError, "chunk generation failed")
	default:
		h.triggerAndRespond(w, r, req)
	}
}

// serveReadyChunk streams the stored object. A ready row whose object
// is gone (eventual consistency, cross-region drift) is demoted to
// not-found: generation is re-triggered and the client polls again.
func (h *Handlers) serveReadyChunk(w http.ResponseWriter, r *http.Request, req chunkRequest) {
	ctx := r.Context()

	meta, err := h.chunks.GetChunkMetadata(ctx, req.version, req.chunkX, req.chunkZ, models.LayerTerrain, req.resolution)
	if err != nil {
		h.respondChunkError(w, r, err)
		return
	}
	if meta == nil {
		h.triggerAndRespond(w, r, req)
		return
	}

	data, err := h.objects.Get(ctx, meta.S3Key)
	if err != nil {
		if objectstore.IsNotFound(err) {
			slog.Warn("ready chunk has no object behind it, re-triggering",
				"world_version", req.version, "chunk_x", req.chunkX, "chunk_z", req.chunkZ,
				"resolution", req.resolution, "object_key", meta.S3Key)
			h.triggerAndRespond(w, r, req)
			return
		}
		slog.Error("chunk object read failed", "object_key", meta.S3Key, "error", err)
		RespondInternalError(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", `"`+meta.Checksum+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// triggerAndRespond schedules generation and answers 202. A DEM gate
// refusal is still a 202: the missing tile was just enqueued and the
// client should poll.
func (h *Handlers) triggerAndRespond(w http.ResponseWriter, r *http.Request, req chunkRequest) {
	err := h.chunks.TriggerGeneration(r.Context(), req.version, req.chunkX, req.chunkZ, models.LayerTerrain, req.resolution)
	if err != nil {
		var notReady *chunks.DemTileNotReadyError
		if errors.As(err, &notReady) {
			respondPending(w, r, pendingBody{Status: "awaiting_dem", TileKey: notReady.TileKey})
			return
		}
		h.respondChunkError(w, r, err)
		return
	}
	respondPending(w, r, pendingBody{Status: "scheduled"})
}

// GetChunkStatus returns the metadata row as JSON.
func (h *Handlers) GetChunkStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := parseChunkRequest(w, r)
	if !ok {
		return
	}

	meta, err := h.chunks.GetChunkMetadata(r.Context(), req.version, req.chunkX, req.chunkZ, models.LayerTerrain, req.resolution)
	if err != nil {
		h.respondChunkError(w, r, err)
		return
	}
	if meta == nil {
		RespondJSON(w, r, http.StatusOK, map[string]string{"status": "not_found"})
		return
	}
	RespondJSON(w, r, http.StatusOK, meta)
}

func respondPending(w http.ResponseWriter, r *http.Request, body pendingBody) {
	w.Header().Set("Cache-Control", "no-store")
	RespondJSON(w, r, http.StatusAccepted, body)
}

func (h *Handlers) respondChunkError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, world.ErrUnknownVersion):
		RespondNotFound(w, r, "unknown world version")
	case errors.Is(err, chunks.ErrOutOfRange), errors.Is(err, srtm.ErrOutOfRange):
		RespondBadRequest(w, r, err.Error())
	default:
		slog.Error("chunk request failed", "path", r.URL.Path, "error", err)
		RespondInternalError(w, r)
	}
}
