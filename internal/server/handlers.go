package server

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Clients  int    `json:"clients"`
}

func (r *Relay) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sessions, clients := r.hub.Stats()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: sessions, Clients: clients})
}

func (r *Relay) handleSession(w http.ResponseWriter, req *http.Request) {
	snapshot, ok := r.hub.Snapshot(req.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (r *Relay) handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("upgrade failed", "remote", req.RemoteAddr, "error", err)
		return
	}
	r.hub.Serve(conn, bearerToken(req))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
