package notify

import (
	"context"

	"vetgrid.org/internal/obs"
)

// LogSink writes notification records to the structured log. It stands
// in for the real delivery channel, which lives outside this service.
type LogSink struct{}

func (LogSink) DeliverAdmin(ctx context.Context, n AdminNotification) error {
	obs.LogEvent(map[string]any{
		"type":      "notification",
		"channel":   "admin",
		"id":        n.ID,
		"recipient": n.RecipientID,
		"event":     n.Event,
		"title":     n.Title,
	})
	return nil
}

func (LogSink) DeliverEmail(ctx context.Context, n EmailNotification) error {
	obs.LogEvent(map[string]any{
		"type":      "notification",
		"channel":   "email",
		"id":        n.ID,
		"recipient": n.RecipientID,
		"subject":   n.Subject,
	})
	return nil
}
