package logger_adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"property-import-service/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFluent struct {
	tags     []string
	messages []map[string]interface{}
}

func (f *fakeFluent) Post(tag string, message interface{}) error {
	f.tags = append(f.tags, tag)
	f.messages = append(f.messages, message.(port.Fields))
	return nil
}

func (f *fakeFluent) Close() error { return nil }

func TestSlogAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogAdapter(SlogConfig{Writer: &buf, Level: slog.LevelInfo, IsJSON: true})

	log.WithFields(port.Fields{"component": "worker"}).
		Error("import failed", errors.New("boom"), port.Fields{"job_id": "j1"})
	log.Debug("hidden", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "import failed", entry["msg"])
	assert.Equal(t, "worker", entry["component"])
	assert.Equal(t, "j1", entry["job_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}

func TestFluentAdapter_LevelGateAndFields(t *testing.T) {
	client := &fakeFluent{}
	log := newFluentLoggerAdapter(client, slog.LevelWarn).WithFields(port.Fields{"service_name": "imports"})

	log.Info("skipped", nil)
	log.Warn("slow batch", port.Fields{"rows": 100})

	require.Len(t, client.messages, 1)
	assert.Equal(t, "warn", client.tags[0])
	assert.Equal(t, "imports", client.messages[0]["service_name"])
	assert.Equal(t, "slow batch", client.messages[0]["message"])
	assert.Equal(t, 100, client.messages[0]["rows"])
}

func TestMultilogger(t *testing.T) {
	_, err := NewMultiloggerAdapter(nil)
	assert.Error(t, err)

	a, b := &fakeFluent{}, &fakeFluent{}
	multi, err := NewMultiloggerAdapter(newFluentLoggerAdapter(a, nil), nil, newFluentLoggerAdapter(b, nil))
	require.NoError(t, err)

	multi.WithFields(port.Fields{"trace_id": "t"}).Info("hello", nil)
	assert.Len(t, a.messages, 1)
	assert.Len(t, b.messages, 1)
	assert.Equal(t, "t", b.messages[0]["trace_id"])
}
