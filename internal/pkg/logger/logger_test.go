package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactPhone(t *testing.T) {
	assert.Equal(t, "+52***5678", RedactPhone("+5215512345678"))
	assert.Equal(t, "55***5678", RedactPhone("5512345678"))
	assert.Equal(t, "***", RedactPhone("12345"))
	assert.Equal(t, "***", RedactPhone("+"))
}

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	})
	return &buf
}

func TestLogRedactsPhones(t *testing.T) {
	buf := capture(t)

	Info("row rejected", "phone", "+5215512345678", "detail", "bad row for 5512345678 in RPT-1712345678901")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "+52***5678", entry["phone"])
	assert.Equal(t, "bad row for 55***5678 in RPT-1712345678901", entry["detail"])
}

func TestLogLevelFilter(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Info("dropped")
	Warn("kept", "n", 1)

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel(" warn ")
	assert.True(t, ok)
	assert.Equal(t, WARN, l)

	l, ok = ParseLevel("verbose")
	assert.False(t, ok)
	assert.Equal(t, INFO, l)
}
