package server

import (
	"encoding/json"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"cleanflow/internal/domain"
	"cleanflow/internal/engine"
	"cleanflow/internal/engine/access"
	"cleanflow/internal/feed"
	"cleanflow/internal/notify"
)

const streamHeartbeat = 25 * time.Second

// streamFilter maps the caller's role onto its feed scope. Residents get
// their own items only; position changes are part of the administrator
// tracking view, not the resident dashboard.
func streamFilter(ident access.Identity, collectorID string) notify.Filter {
	switch ident.Role {
	case domain.RoleAdmin:
		return notify.Any(notify.AllItems(), notify.AllPositions())
	case domain.RoleResident:
		return notify.OwnerItems(ident.AccountID)
	case domain.RoleCollector:
		return notify.CollectorTasks(collectorID)
	}
	return func(feed.Change) bool { return false }
}

// registerStream exposes the change feed as server-sent events, scoped to
// the caller's role. The first event is always "refresh" so clients load
// current state before relying on change notifications; after that each
// change carries the record snapshot.
func registerStream(r chi.Router, basePath string, e engine.Engine, n *notify.Notifier) {
	if n == nil {
		return
	}
	r.Get(path.Join(basePath, "stream"), func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		accountID, authErr := accountIDFromContext(ctx)
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		ident, err := e.Gate.Authorize(ctx, accountID)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}

		collectorID := ""
		if ident.Role == domain.RoleCollector {
			c, err := e.Repo.GetCollectorByAccount(ctx, ident.AccountID)
			if err != nil {
				respondStatusError(w, handleError(err))
				return
			}
			collectorID = c.ID
		}
		filter := streamFilter(ident, collectorID)

		flusher, ok := w.(http.Flusher)
		if !ok {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "streaming unsupported", nil))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		w.Write([]byte("event: refresh\ndata: {}\n\n"))
		flusher.Flush()

		sub := n.Subscribe(filter)
		defer sub.Close()

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				w.Write([]byte(": keepalive\n\n"))
				flusher.Flush()
			case change, open := <-sub.C:
				if !open {
					return
				}
				data, err := json.Marshal(change)
				if err != nil {
					continue
				}
				w.Write([]byte("event: change\ndata: "))
				w.Write(data)
				w.Write([]byte("\n\n"))
				flusher.Flush()
			}
		}
	})
}
