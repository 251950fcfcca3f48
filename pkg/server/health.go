package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/downfa11-org/go-backup/pkg/backup"
	"github.com/downfa11-org/go-backup/util"
)

type healthStatus struct {
	Status   string `json:"status"`
	BackupID string `json:"backup_id"`
	Segments int    `json:"segments"`
	Bytes    int64  `json:"bytes"`
}

// HealthHandler reports liveness together with what the backup currently stores.
func HealthHandler(svc *backup.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := svc.Store().Stats()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(healthStatus{
			Status:   "ok",
			BackupID: svc.ID().String(),
			Segments: st.Segments,
			Bytes:    st.Bytes,
		}); err != nil {
			util.Warn("failed to write health response: %v", err)
		}
	})
}

func startHealthCheckServer(port int, svc *backup.Service) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/health", HealthHandler(svc))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		util.Info("Health check listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Error("Health check server failed: %v", err)
		}
	}()
	return srv
}
