package kafka

import (
	"testing"
	"time"

	"github.com/nextstrain/forecasts-ncov/internal/domain"
	"github.com/nextstrain/forecasts-ncov/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T) *pipeline.Snapshot {
	t.Helper()
	data, err := domain.Transform(domain.RawPayload{
		Metadata: &domain.RawMetadata{
			Location: []string{"USA", "Japan"},
			Variants: []string{"22F (Omicron)", "other"},
			Dates:    []string{"2024-01-01"},
		},
		Data: []domain.RawRecord{
			{Location: "USA", Variant: "22F (Omicron)", Date: "2024-01-01", Site: domain.SiteFreq, PS: domain.MedianPS, Value: domain.SomeFloat(0.25)},
			{Location: "Japan", Variant: "other", Date: "2024-01-01", Site: domain.SiteR, PS: domain.MedianPS, Value: domain.SomeFloat(1.1)},
		},
	}, nil, domain.Options{})
	require.NoError(t, err)

	snap, err := pipeline.NewSnapshot("mlr_clades", data, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return snap
}

func TestSnapshotMessages(t *testing.T) {
	snap := testSnapshot(t)

	msgs, err := snapshotMessages(snap)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, []byte("mlr_clades/USA"), msgs[0].Key)
	assert.Equal(t, []byte("mlr_clades/Japan"), msgs[1].Key)

	msg := msgs[0]
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, kafkago.Header{Key: HeaderModel, Value: []byte("mlr_clades")}, msg.Headers[0])
	assert.Equal(t, kafkago.Header{Key: HeaderSnapshotID, Value: []byte(snap.ID)}, msg.Headers[1])
	assert.Equal(t, kafkago.Header{Key: HeaderFetchedAt, Value: []byte("2024-01-02T12:00:00Z")}, msg.Headers[2])
	assert.Contains(t, string(msg.Value), `"location":"USA"`)
	assert.Contains(t, string(msg.Value), `"freq":0.25`)
	assert.NotContains(t, string(msg.Value), "Japan")
}

func TestDecodeMessage_RoundTrip(t *testing.T) {
	snap := testSnapshot(t)
	msgs, err := snapshotMessages(snap)
	require.NoError(t, err)

	got, err := DecodeMessage(msgs[1])
	require.NoError(t, err)
	assert.Equal(t, "mlr_clades", got.Model)
	assert.Equal(t, snap.ID, got.SnapshotID)
	assert.True(t, snap.FetchedAt.Equal(got.FetchedAt))
	assert.Equal(t, "Japan", got.Snapshot.Location)
	assert.Equal(t, domain.SomeFloat(1.1), got.Snapshot.Points["other"][0].RT)
	assert.False(t, got.Snapshot.Points["other"][0].Freq.OK)
}

func TestDecodeMessage_BadHeader(t *testing.T) {
	_, err := DecodeMessage(kafkago.Message{
		Value:   []byte(`{}`),
		Headers: []kafkago.Header{{Key: HeaderFetchedAt, Value: []byte("yesterday")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), HeaderFetchedAt)
}
