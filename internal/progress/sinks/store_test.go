package sinks

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sitesignal/sitesignal/internal/progress"
)

func TestStoreSinkPreservesArrivalOrder(t *testing.T) {
	sink := NewStoreSink()
	runID := progress.UUIDToBytes(uuid.New())

	for i := range 10 {
		err := sink.Consume(context.Background(), []progress.Event{{
			RunID: runID,
			TS:    time.Now().UTC(),
			Stage: progress.StageStageDone,
			Name:  "stage-" + strconv.Itoa(i),
		}})
		require.NoError(t, err)
	}

	events := sink.Events()
	require.Len(t, events, 10)
	for i, evt := range events {
		require.Equal(t, "stage-"+strconv.Itoa(i), evt.Name)
	}
	require.Equal(t, 10, sink.Len())
}

func TestStoreSinkEventsReturnsCopy(t *testing.T) {
	sink := NewStoreSink()
	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: progress.StageRunStart,
	}}))

	events := sink.Events()
	events[0].Note = "mutated"
	require.Empty(t, sink.Events()[0].Note)
}
