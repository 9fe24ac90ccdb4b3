package misc

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimalHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMinimalHandler(&buf, MinimalHandlerOptions{}))

	Infof(logger, "claimed %d eras", 3)
	assert.Equal(t, "claimed 3 eras \n", buf.String())

	buf.Reset()
	logger.With("account", "i4z").Warn("dropped")
	assert.Contains(t, buf.String(), "WARN dropped")
	assert.Contains(t, buf.String(), `"account":"i4z"`)
}

func TestDebugfSkippedBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(NewMinimalHandler(&buf, MinimalHandlerOptions{SlogOpts: slog.HandlerOptions{Level: level}}))

	Debugf(logger, "hidden")
	assert.Empty(t, buf.String())

	level.Set(slog.LevelDebug)
	Debugf(logger, "shown")
	assert.Equal(t, "shown \n", buf.String())
}
