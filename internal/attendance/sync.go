package attendance

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RemoteEndpoints is the surface a future remote sync would talk to.
var RemoteEndpoints = []string{
	"GET /attendance",
	"POST /attendance",
	"PATCH /attendance/:id",
	"DELETE /attendance/:id",
}

// SyncResult reports the outcome of TrySync.
type SyncResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// APIBaseURL returns the configured remote base, if any.
func (s *Store) APIBaseURL() (string, bool) {
	base := strings.TrimSpace(s.apiBase)
	return base, base != ""
}

// TrySync reports whether remote sync could run. Sync is not enabled in this
// build: no request is made and the store is left untouched.
func (s *Store) TrySync(_ context.Context) SyncResult {
	base, ok := s.APIBaseURL()
	if !ok {
		return SyncResult{Message: "API base not configured; using local storage."}
	}
	s.logger.Info("api sync requested but disabled", zap.String("base", base))
	return SyncResult{Message: fmt.Sprintf("API base configured (%s) but sync is not enabled in this build.", base)}
}
