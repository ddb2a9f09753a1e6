package api

import (
	"net/http"
)

func (s *Server) handleSynthStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.SynthStats == nil {
		jsonError(w, "synthesis stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"backend": s.cfg.SynthBackend,
		"stats":   s.deps.SynthStats.Snapshot(),
	})
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default": s.deps.Voices.Default(),
		"voices":  s.deps.Voices.Profiles(),
	})
}
