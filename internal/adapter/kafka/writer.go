package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextstrain/forecasts-ncov/internal/config"
	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"github.com/nextstrain/forecasts-ncov/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
)

// Message header keys.
const (
	HeaderModel      = "model"
	HeaderSnapshotID = "snapshot_id"
	HeaderFetchedAt  = "fetched_at"
)

// Writer produces per-location snapshot messages to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one message per location of snap in a single WriteMessages
// call. Keys are model/location so a location always lands on the same
// partition.
func (w *Writer) Publish(ctx context.Context, snap *pipeline.Snapshot) error {
	msgs, err := snapshotMessages(snap)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %s snapshot: %w", snap.Model, err)
	}
	w.logger.Debug("snapshot published",
		"model", snap.Model,
		"snapshot_id", snap.ID,
		"messages", len(msgs),
	)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func snapshotMessages(snap *pipeline.Snapshot) ([]kafkago.Message, error) {
	msgs := make([]kafkago.Message, 0, len(snap.Data.Locations))
	for _, loc := range snap.Data.Locations {
		ls, ok := snap.Data.Location(loc)
		if !ok {
			continue
		}
		msg, err := serializeToMessage(snap, ls)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// serializeToMessage marshals one location of a snapshot into a Kafka message.
func serializeToMessage(snap *pipeline.Snapshot, ls domain.LocationSnapshot) (kafkago.Message, error) {
	data, err := json.Marshal(ls)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s/%s: %w", snap.Model, ls.Location, err)
	}
	return kafkago.Message{
		Key:   []byte(snap.Model + "/" + ls.Location),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderModel, Value: []byte(snap.Model)},
			{Key: HeaderSnapshotID, Value: []byte(snap.ID)},
			{Key: HeaderFetchedAt, Value: []byte(snap.FetchedAt.Format(time.RFC3339))},
		},
	}, nil
}

// LocationMessage is a decoded snapshot message.
type LocationMessage struct {
	Model      string
	SnapshotID string
	FetchedAt  time.Time
	Snapshot   domain.LocationSnapshot
}

// DecodeMessage parses a message written by Writer.
func DecodeMessage(msg kafkago.Message) (LocationMessage, error) {
	var out LocationMessage
	for _, h := range msg.Headers {
		switch h.Key {
		case HeaderModel:
			out.Model = string(h.Value)
		case HeaderSnapshotID:
			out.SnapshotID = string(h.Value)
		case HeaderFetchedAt:
			t, err := time.Parse(time.RFC3339, string(h.Value))
			if err != nil {
				return LocationMessage{}, fmt.Errorf("parse %s header: %w", HeaderFetchedAt, err)
			}
			out.FetchedAt = t
		}
	}
	if err := json.Unmarshal(msg.Value, &out.Snapshot); err != nil {
		return LocationMessage{}, fmt.Errorf("decode location snapshot: %w", err)
	}
	return out, nil
}
