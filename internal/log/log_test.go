package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelsAndFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	SetLevel(ParseLevel("warn"))
	Info("hidden")
	Warn("catalog reload slow", "venues", 12, "path", "/tmp/my venues.yaml")
	Error("catalog reload failed", errors.New("boom"), "odd")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `[WARN] catalog reload slow venues=12 path="/tmp/my venues.yaml"`)
	require.Contains(t, out, "[ERROR] catalog reload failed err=boom")
	require.NotContains(t, out, "odd")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel(" debug "))
	require.Equal(t, LevelInfo, ParseLevel("verbose"))
	require.Equal(t, LevelError, ParseLevel("ERROR"))
}
