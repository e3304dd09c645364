package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestU_Logging_New(t *testing.T) {
	var buf bytes.Buffer
	l := New(slog.New(slog.NewTextHandler(&buf, nil))).With("component", "test")
	l.Info(context.Background(), "hello", Redacted("key", []byte{1, 2, 3}))

	out := buf.String()
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "[redacted](3 bytes)")
	assert.NotContains(t, out, "010203")
}

func TestU_Logging_Discard(t *testing.T) {
	l := OrDiscard(nil)
	require.NotNil(t, l)
	l.Error(context.Background(), "dropped")
}

func TestU_Logging_NewHandler(t *testing.T) {
	var buf bytes.Buffer
	h, err := NewHandler(&buf, "json", "debug")
	require.NoError(t, err)
	slog.New(h).Debug("x")
	assert.Contains(t, buf.String(), `"msg":"x"`)

	_, err = NewHandler(&buf, "xml", "info")
	assert.Error(t, err)
	_, err = NewHandler(&buf, "text", "loud")
	assert.Error(t, err)
}
