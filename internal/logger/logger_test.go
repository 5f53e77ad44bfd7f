package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for the test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput, originalColor := output, useColor
	mu.Unlock()
	originalLevel := GetLevel()
	originalFormat, _ := currentFormat.Load().(string)

	InitWithWriter(buf, "", "", false)
	t.Cleanup(func() {
		InitWithWriter(originalOutput, originalLevel.String(), originalFormat, originalColor)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf := captureOutput(t)
		require.NoError(t, SetLevel("DEBUG"))
		require.NoError(t, SetFormat("text"))

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		for _, want := range []string{"[DEBUG] debug message", "[INFO] info message", "[WARN] warn message", "[ERROR] error message"} {
			assert.Contains(t, out, want)
		}
	})

	t.Run("WarnLevelFiltersLower", func(t *testing.T) {
		buf := captureOutput(t)
		require.NoError(t, SetLevel("warn"))
		require.NoError(t, SetFormat("text"))

		Debug("debug message")
		Debugf("debug %d", 2)
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})
}

func TestStructuredFields(t *testing.T) {
	buf := captureOutput(t)
	require.NoError(t, SetLevel("INFO"))
	require.NoError(t, SetFormat("text"))

	Info("resolved", KeyName, "FILESRV", KeyCount, 2, Err(errors.New("boom")))
	With(KeyBackend, "wins").WithGroup("q").Info("query", KeyAddr, "10.0.0.1")

	out := buf.String()
	assert.Contains(t, out, "resolved name=FILESRV count=2 error=boom")
	assert.Contains(t, out, "query backend=wins q.addr=10.0.0.1")
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	require.NoError(t, SetLevel("INFO"))
	require.NoError(t, SetFormat("json"))

	Info("lookup", KeyName, "DC01", KeyType, "0x1c")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "lookup", rec["msg"])
	assert.Equal(t, "DC01", rec[KeyName])
	assert.Equal(t, "0x1c", rec[KeyType])
}

func TestInvalidSettings(t *testing.T) {
	captureOutput(t)
	assert.Error(t, SetLevel("loud"))
	assert.Error(t, SetFormat("xml"))
}

func TestInitFileOutput(t *testing.T) {
	mu.Lock()
	originalOutput, originalColor := output, useColor
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
		mu.Unlock()
		InitWithWriter(originalOutput, "INFO", "text", originalColor)
	})

	path := filepath.Join(t.TempDir(), "nbresolve.log")
	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[INFO] to file"))
}
