package handler

import (
	"net/http"
)

// CacheProbe reports whether the cache backend was reachable at startup.
type CacheProbe interface {
	Available() bool
}

type HealthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
}

// Health reports liveness. A missing cache degrades fetches but never fails the check.
func Health(cache CacheProbe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := "unavailable"
		if cache != nil && cache.Available() {
			state = "available"
		}
		JSON(w, http.StatusOK, HealthResponse{
			Status: "ok",
			Cache:  state,
		})
	}
}
