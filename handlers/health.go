package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"
)

type healthResponse struct {
	Status        string          `json:"status"`
	Store         string          `json:"store"`
	StoreDriver   string          `json:"store_driver"`
	Config        map[string]bool `json:"config"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	GoVersion     string          `json:"go_version"`
	PID           int             `json:"pid"`
}

// Health reports whether the account store is usable and which settings
// are present. Setting values are never included.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) error {
	store := "disconnected"
	if s.Store != nil && s.Config.StoreConfigured() {
		store = "connected"
	}

	resp := healthResponse{
		Status:        "ok",
		Store:         store,
		StoreDriver:   s.Config.StoreDriver,
		Config:        s.Config.Presence(),
		UptimeSeconds: int64(time.Since(s.Started).Seconds()),
		GoVersion:     runtime.Version(),
		PID:           os.Getpid(),
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}
