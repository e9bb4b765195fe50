package handlers

import (
	"log"
	"net/http"
)

// Platforms handles GET /platforms: each platform's login state in the
// configured region, with the login URL to fix it.
func (h *Handler) Platforms(w http.ResponseWriter, r *http.Request) {
	data := PlatformsData{
		Title:     "Platforms",
		ActiveNav: "platforms",
		Region:    h.cfg.Region,
	}

	catalog, err := h.engine.GetAIPlatforms(r.Context(), false)
	if err != nil {
		// Fall back to the cached auth rows when the engine is down.
		log.Printf("handlers: platform catalog unavailable: %v", err)
		rows, err := h.db.ListPlatformAuth(h.cfg.Region)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, row := range rows {
			data.Platforms = append(data.Platforms, PlatformAuthView{
				ID:            row.Platform,
				Name:          row.Platform,
				Authenticated: row.Authenticated,
				LoginURL:      h.engine.PlatformURL(row.Platform),
			})
		}
		h.render(w, "platforms.html", data)
		return
	}

	for _, p := range catalog {
		authed, err := h.db.IsPlatformAuthenticated(h.cfg.Region, p.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Platforms = append(data.Platforms, PlatformAuthView{
			ID:            p.ID,
			Name:          p.Name,
			Authenticated: authed,
			LoginURL:      h.engine.PlatformURL(p.ID),
		})
	}

	h.render(w, "platforms.html", data)
}
