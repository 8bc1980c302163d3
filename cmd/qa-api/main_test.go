package main

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/infrastructure/messaging"
	"med-kg-qa-api/pkg/metrics"
)

func TestHandleChunksUpsertedCountsChunks(t *testing.T) {
	before := testutil.ToFloat64(metrics.ChunksUpsertedTotal)

	msg, err := messaging.NewMessage("doc-1", messaging.MsgTypeChunksUpserted,
		&messaging.ChunksUpsertedMessage{DocID: "doc-1", ChunkCount: 12})
	require.NoError(t, err)

	require.NoError(t, handleChunksUpserted(context.Background(), msg))

	assert.Equal(t, before+12, testutil.ToFloat64(metrics.ChunksUpsertedTotal))
}

func TestHandleChunksUpsertedRejectsMalformedPayload(t *testing.T) {
	msg := &messaging.Message{
		Type:    messaging.MsgTypeChunksUpserted,
		Payload: []byte("not-json"),
	}

	assert.Error(t, handleChunksUpserted(context.Background(), msg))
}
