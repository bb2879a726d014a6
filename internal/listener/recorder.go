// Package listener holds the pieces shared by all protocol listeners:
// the interaction recorder and the listener-side metrics.
package listener

import (
	"context"
	"time"

	"github.com/org/dusseldorf/internal/rules"
	"github.com/org/dusseldorf/internal/storage"
	"github.com/org/dusseldorf/pkg/models"
	"github.com/rs/zerolog/log"
)

// Recorder persists one interaction log entry per handled request.
// Entries are append-only; listeners are the only writers.
type Recorder struct {
	store storage.Backend
}

// NewRecorder creates a Recorder backed by the given storage.
func NewRecorder(store storage.Backend) *Recorder {
	return &Recorder{store: store}
}

// Save writes the request/response pair to the interaction log. Failures
// are logged and swallowed: the wire path has already answered, and the
// log must never take a listener down.
func (r *Recorder) Save(ctx context.Context, req rules.Request, resp rules.Response) {
	entry := &models.Interaction{
		Zone:        req.Zone(),
		Time:        time.Now().UnixMilli(),
		FQDN:        req.FQDN(),
		Protocol:    req.Protocol(),
		ClientIP:    req.RemoteAddr(),
		Request:     req.JSON(),
		Response:    resp.JSON(),
		ReqSummary:  req.Summary(),
		RespSummary: resp.Summary(),
	}
	if err := r.store.InsertInteraction(ctx, entry); err != nil {
		recordErrors.WithLabelValues(entry.Protocol).Inc()
		log.Error().Err(err).
			Str("zone", entry.Zone).
			Str("protocol", entry.Protocol).
			Msg("failed to persist interaction")
		return
	}
	interactionsTotal.WithLabelValues(entry.Protocol).Inc()
}
