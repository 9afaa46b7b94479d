package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffConfig_CalculateBackoff(t *testing.T) {
	cfg := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, cfg.CalculateBackoff(0))
	assert.Equal(t, 2*time.Second, cfg.CalculateBackoff(1))
	assert.Equal(t, 4*time.Second, cfg.CalculateBackoff(2))
	assert.Equal(t, 5*time.Second, cfg.CalculateBackoff(3))
	assert.Equal(t, 5*time.Second, cfg.CalculateBackoff(10))
}

func TestMessage_PayloadRoundTrip(t *testing.T) {
	msg, err := NewMessage("m1", TypeRetrievalPurge, "p1", &PurgeMessage{
		ProjectID:   "p1",
		FromChapter: 26,
		ChapterIDs:  []string{"c1", "c2"},
	})
	require.NoError(t, err)

	msg.SetMetadata("request_id", "req-1")
	msg.SetMetadata("empty", "")
	assert.Equal(t, "req-1", msg.GetMetadata("request_id"))
	_, exists := msg.Metadata["empty"]
	assert.False(t, exists)

	var purge PurgeMessage
	require.NoError(t, msg.UnmarshalPayload(&purge))
	assert.Equal(t, 26, purge.FromChapter)
	assert.Equal(t, []string{"c1", "c2"}, purge.ChapterIDs)
}

func TestStream_DLQStream(t *testing.T) {
	assert.Equal(t, "dlq:stream:retrieval:purge", StreamRetrievalPurge.DLQStream())
}

func TestConsumerGroup_WithPrefix(t *testing.T) {
	assert.Equal(t, ConsumerGroup("z_novel_plan:cg-content-worker"), ConsumerGroupContentWorker.WithPrefix("z_novel_plan"))
	assert.Equal(t, ConsumerGroupRetrievalWorker, ConsumerGroupRetrievalWorker.WithPrefix(""))
}

func TestConsumerConfig_Defaults(t *testing.T) {
	cfg := ConsumerConfig{Stream: StreamContentGen}.withDefaults()
	assert.Equal(t, 5*time.Second, cfg.BlockTimeout)
	assert.Equal(t, 30*time.Second, cfg.ClaimInterval)
	assert.Equal(t, 3, cfg.RetryLimit)
	assert.Equal(t, DefaultBackoffConfig(), cfg.Backoff)

	c := NewConsumer(nil, ConsumerConfig{HandlerTimeout: 10 * time.Minute})
	assert.Equal(t, 20*time.Minute, c.reclaimIdle)
	c.Stop()
}
