package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/encbench/internal/api/models"
	"github.com/smazurov/encbench/internal/events"
)

// registerSSERoutes registers the live run event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Run state changes, negotiated formats, finished run reports and job file reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":         models.ConnectedData{},
		"run-state-changed": events.RunStateChangedEvent{},
		"format-changed":    events.FormatChangedEvent{},
		"run-completed":     events.RunCompletedEvent{},
		"jobs-reloaded":     events.JobsReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if s.options.EventBus == nil {
			return
		}

		eventCh := make(chan any, 32)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.RunStateChangedEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.FormatChangedEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.RunCompletedEvent](s.options.EventBus, eventCh),
			events.SubscribeToChannel[events.JobsReloadedEvent](s.options.EventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(models.ConnectedData{
			Message:   "SSE connection established",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
