package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestInitializeWithWriter(t *testing.T) {
	var buf bytes.Buffer
	InitializeWithWriter(&buf, "info", "json")
	t.Cleanup(func() { Initialize("info", "text") })

	t.Run("Debug suppressed at info", func(t *testing.T) {
		buf.Reset()
		DatabaseCall("select", "SELECT 1")
		assert.Empty(t, buf.String())
	})

	t.Run("Structured fields", func(t *testing.T) {
		buf.Reset()
		WithMethod("reservationService.Create").Info("Reservation created", "reservation_id", "r-1")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "Reservation created", line["msg"])
		assert.Equal(t, "reservationService.Create", line["method"])
		assert.Equal(t, "r-1", line["reservation_id"])
		assert.Equal(t, "carrental", line["app"])
	})

	t.Run("Failures logged at error", func(t *testing.T) {
		buf.Reset()
		ExternalServiceResult("sendgrid", "send", errors.New("401"))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "ERROR", line["level"])
		assert.Equal(t, "sendgrid", line["service"])
	})
}
