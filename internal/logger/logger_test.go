package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)
	require.NoError(t, l.SetLevel("warn"))

	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	l.Errorf("shown %d", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown 2", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	l := NewWriter(&bytes.Buffer{})
	assert.Error(t, l.SetLevel("loud"))
	assert.NoError(t, l.SetLevel("DEBUG"))
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)

	l.Printf("rate %.1f", 1.5)
	l.Println("done", 3)
	l.Debugf("debug line")

	out := buf.String()
	assert.Contains(t, out, `"message":"rate 1.5"`)
	assert.Contains(t, out, `"message":"done 3"`)
	assert.Contains(t, out, "debug line")

	Nop().Infof("discarded")
}
