package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger/pkg/logger"
)

func TestZerologHandlerLevels(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	log := logger.New(buf)

	log.Info("pull finished", "group_id", int64(3), "entities", 7)

	var line struct {
		Level    string `json:"level"`
		Message  string `json:"message"`
		GroupID  int64  `json:"group_id"`
		Entities int    `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "info", line.Level)
	require.Equal(t, "pull finished", line.Message)
	require.Equal(t, int64(3), line.GroupID)
	require.Equal(t, 7, line.Entities)
}

func TestZerologHandlerOddArgs(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	log := logger.New(buf)

	// Trailing key without a value must not panic and still log the message.
	log.Error("push failed", "entity_id")

	var line struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "push failed", line.Message)
}
