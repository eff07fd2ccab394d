package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRequestIDAddsField(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}) })

	ctx := WithRequestID(context.Background(), "req-42")
	Info(ctx, "hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "v", entry["k"])
}

func TestSetLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetLevel("info")
		SetOutput(&bytes.Buffer{})
	})

	SetLevel("info")
	Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	SetLevel("debug")
	Debug(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContextDefault(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
