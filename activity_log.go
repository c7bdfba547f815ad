package identity

import (
	"context"
	"strings"
	"time"
)

type loggerActivitySink struct {
	logger  Logger
	channel string
}

// NewLoggerActivitySink records events as structured log lines. Events are
// flattened so every sink backend sees the same keys.
func NewLoggerActivitySink(logger Logger, channel string) ActivitySink {
	if strings.TrimSpace(channel) == "" {
		channel = "identity"
	}
	return loggerActivitySink{logger: normalizeLogger(logger), channel: channel}
}

func (s loggerActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	n := FlattenActivity(event)
	args := []any{
		"channel", s.channel,
		"verb", n.Verb,
		"actor_id", n.ActorID,
		"object_id", n.ObjectID,
		"occurred_at", n.OccurredAt,
	}
	for k, v := range n.Metadata {
		args = append(args, k, v)
	}
	s.logger.Info("activity", args...)
	return nil
}

// FlatActivity is a transport agnostic shape for downstream systems.
type FlatActivity struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectID   string         `json:"object_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt string         `json:"occurred_at"`
}

// FlattenActivity converts an ActivityEvent into a FlatActivity. Status
// changes land in the metadata as from_status and to_status.
func FlattenActivity(event ActivityEvent) FlatActivity {
	actorID := firstNonEmpty(strings.TrimSpace(event.Actor.ID), strings.TrimSpace(event.UserID), SystemActor.Type)

	meta := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		meta[k] = v
	}
	if event.Actor.Type != "" {
		meta["actor_type"] = event.Actor.Type
	}
	if event.FromStatus != "" {
		meta["from_status"] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		meta["to_status"] = string(event.ToStatus)
	}
	if len(meta) == 0 {
		meta = nil
	}

	var occurred string
	if !event.OccurredAt.IsZero() {
		occurred = event.OccurredAt.UTC().Format(time.RFC3339)
	}

	return FlatActivity{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectID:   strings.TrimSpace(event.UserID),
		Metadata:   meta,
		OccurredAt: occurred,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
