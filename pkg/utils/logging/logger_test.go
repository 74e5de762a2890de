package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_WritesJSONFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer

	logger, err := InitLogger("test", Options{Dir: dir, Console: &console})
	require.NoError(t, err)
	logger.Debug("debug goes to the file only")
	_ = logger.Sync()

	assert.Empty(t, console.String())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "test_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &line))
	assert.Equal(t, "debug goes to the file only", line["msg"])
	assert.Equal(t, "test", line["env"])
	assert.Contains(t, line, "timestamp")
}

func TestInitLogger_ConsoleLevel(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{"info by default", false, false},
		{"debug when verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console bytes.Buffer
			logger, err := InitLogger("test", Options{Dir: t.TempDir(), Verbose: tt.verbose, Console: &console})
			require.NoError(t, err)

			logger.Debug("checking event")
			logger.Info("alert sent")
			_ = logger.Sync()

			assert.Contains(t, console.String(), "alert sent")
			assert.Equal(t, tt.wantDebug, strings.Contains(console.String(), "checking event"))
		})
	}
}
