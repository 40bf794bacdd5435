package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"dibs-assistant/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, logger.NewNoOpLogger(), "dial")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithBackoff(func() error {
		calls++
		return errors.New("refused")
	}, 2, time.Millisecond, logger.NewNoOpLogger(), "dial")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "dial failed after 2 attempts: refused")
}

func TestTextSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &textSink{w: &buf}
	require.NoError(t, sink.WriteText("Hello"))
	require.NoError(t, sink.WriteText(", Jane"))
	require.NoError(t, sink.WriteError("Error: upstream closed"))
	require.NoError(t, sink.Finish("error"))

	assert.Equal(t, "Hello, Jane", buf.String())
	assert.EqualError(t, sink.err, "Error: upstream closed")
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["ask"])
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}
