package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/databox/codec"
	"github.com/isdmx/databox/transport"
	"github.com/isdmx/databox/workspace"
)

func TestWorkerServicesRequests(t *testing.T) {
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	ws, err := workspace.Open(dir)
	require.NoError(t, err)

	f, err := os.Create(ws.DatasetPath())
	require.NoError(t, err)
	require.NoError(t, codec.WriteCSV(f, stagedTable()))
	require.NoError(t, f.Close())

	w, err := New(logger, dir, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	host := transport.NewHost(logger, ws, 10*time.Millisecond)

	// First request: a scalar result.
	require.NoError(t, host.Submit(`result = sum(df["a"])`))
	payload, err := host.Await(ctx, 5*time.Second)
	require.NoError(t, err)

	res, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, codec.Other{Text: "6"}, res.Result)

	// Second request on the same loop: a failing script still yields a
	// well-formed response.
	require.NoError(t, host.Submit(`fail("boom")`))
	payload, err = host.Await(ctx, 5*time.Second)
	require.NoError(t, err)

	res, err = codec.Decode(payload)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "boom")

	// Third request proves the loop survived the failure.
	require.NoError(t, host.Submit(`result = df.nrows`))
	payload, err = host.Await(ctx, 5*time.Second)
	require.NoError(t, err)

	res, err = codec.Decode(payload)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, codec.Other{Text: "3"}, res.Result)

	cancel()
	require.NoError(t, <-done)
}

func TestWorkerRequiresStagedDataset(t *testing.T) {
	_, err := New(zaptest.NewLogger(t), t.TempDir(), 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staged dataset missing")
}
