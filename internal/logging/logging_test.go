package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", "json", false)

	logger.Info().Msg("hidden")
	logger.Warn().Str("redemption_id", "r1").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "r1", line["redemption_id"])
	assert.Equal(t, "noxly-redemptions", line["service"])
}

func TestNewWithWriterUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "chatty", "json", false)

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	logger.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestRedactCode(t *testing.T) {
	assert.Equal(t, "****13", RedactCode("482913", false))
	assert.Equal(t, "482913", RedactCode("482913", true))
	assert.Equal(t, "7", RedactCode("7", false))
}
