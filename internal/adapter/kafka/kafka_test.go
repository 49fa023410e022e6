package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/quake-risk-service/internal/config"
	"github.com/couchcryptid/quake-risk-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("PHT", 8*3600))
	event := domain.SeismicEvent{
		ID:        "phivolcs_2026-0301-0410",
		Source:    domain.SourcePHIVOLCS,
		Magnitude: 4.3,
		Latitude:  13.28,
		Longitude: 123.70,
		Time:      time.Date(2026, 3, 1, 3, 10, 0, 0, time.UTC),
	}

	msg, err := serializeToMessage(event, fetched)
	require.NoError(t, err)

	assert.Equal(t, []byte("phivolcs_2026-0301-0410"), msg.Key)
	assert.Contains(t, string(msg.Value), `"source":"phivolcs"`)
	assert.Contains(t, string(msg.Value), `"magnitude":4.3`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "source", msg.Headers[0].Key)
	assert.Equal(t, []byte("phivolcs"), msg.Headers[0].Value)
	assert.Equal(t, "fetched_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-03-01T04:00:00Z"), msg.Headers[1].Value)
}

func TestPublish_EmptyIsNoop(t *testing.T) {
	p := NewPublisher(&config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaTopic: "unused"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = p.Close() })

	assert.NoError(t, p.Publish(context.Background(), nil, time.Now()))
}
