package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: WarnLevel, Output: &buf})

	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Warn("shown warn", "task", "extract/x")
	log.Error("shown error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
	assert.Contains(t, out, "task=extract/x")
	assert.Contains(t, out, "shown error")
}

func TestLevelParsing(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: "DEBUG", Output: &buf})
	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	log = NewLogger(&Config{Level: "bogus", Output: &buf})
	log.Debug("dropped")
	log.Info("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true}).With("run", 7)
	log.Info("task done", "id", "pix/a")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "task done", entry["msg"])
	assert.Equal(t, "pix/a", entry["id"])
	assert.Equal(t, float64(7), entry["run"])
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf})

	ctx := ContextWithLogger(context.Background(), log)
	FromContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.NotNil(t, FromContext(context.Background()))
}
