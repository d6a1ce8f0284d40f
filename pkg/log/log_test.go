package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitJSONOutputWritesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Info("below threshold")
	require.Empty(t, buf.String())

	Logger.Warn().Msg("at threshold")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "at threshold", entry["message"])
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	l := WithComponent("driver")
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "driver", entry["component"])
}

func TestWithWorkerSessionTaskIDFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithWorkerID("10.0.0.1:9000").Info().Msg("w")
	WithSessionID("7").Info().Msg("s")
	WithTaskID("7/1").Info().Msg("t")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	var w, s, tk map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &w))
	require.NoError(t, json.Unmarshal(lines[1], &s))
	require.NoError(t, json.Unmarshal(lines[2], &tk))

	require.Equal(t, "10.0.0.1:9000", w["worker_id"])
	require.Equal(t, "7", s["session_id"])
	require.Equal(t, "7/1", tk["task_id"])
}

func TestDefaultLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: Level("bogus"), JSONOutput: true, Output: &buf})

	Debug("should not appear")
	require.Empty(t, buf.String())

	Info("should appear")
	require.Contains(t, buf.String(), "should appear")
}
