package handlers

import (
	"net/http"
)

// GetWorlds lists the active world versions.
func (h *Handlers) GetWorlds(w http.ResponseWriter, r *http.Request) {
	versions := h.versions.GetActiveVersions()
	RespondJSON(w, r, http.StatusOK, map[string]interface{}{
		"worlds": versions,
	})
}
