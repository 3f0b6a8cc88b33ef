package log_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/log"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("LevelFallback", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := log.New(&buf, false, "nonsense")
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("PackedLine", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := log.New(&buf, false, "debug")
		logger.Debug().Str("track_id", "42").Msg("Track downloaded")
		line := buf.Bytes()
		require.True(t, gjson.ValidBytes(line))
		assert.Equal(t, "42", gjson.GetBytes(line, "track_id").String())
		assert.Equal(t, "Track downloaded", gjson.GetBytes(line, "message").String())
		assert.True(t, gjson.GetBytes(line, "app.version").Exists())
	})
}

func TestFlaw(t *testing.T) {
	t.Parallel()

	t.Run("Flaw", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := log.NewPacked(&buf)
		err := flaw.From(errors.New("failed to fetch playlist")).Append(flaw.P{"owner": "alice"})
		logger.Error().Func(log.Flaw(err)).Msg("Acquisition failed")
		line := buf.Bytes()
		require.True(t, gjson.ValidBytes(line))
		assert.Equal(t, "failed to fetch playlist", gjson.GetBytes(line, "error.message").String())
		assert.Contains(t, gjson.GetBytes(line, "records.#.payload.owner").String(), "alice")
	})

	t.Run("PlainError", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := log.NewPacked(&buf)
		logger.Error().Func(log.Flaw(errors.New("plain"))).Msg("Failed")
		assert.Equal(t, "plain", gjson.GetBytes(buf.Bytes(), "error").String())
	})
}
