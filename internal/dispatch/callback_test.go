package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAction(t *testing.T) {
	id := "0b9f4fd4-0a3e-4a43-9d39-6a3c57b3f0aa"
	data := encodeAction(actAssignUser, id, "12345")
	assert.Equal(t, "au:"+id+":12345", data)

	act, err := decodeAction(data)
	require.NoError(t, err)
	assert.Equal(t, actAssignUser, act.Code)
	assert.Equal(t, id, act.Arg(0))
	assert.Equal(t, "12345", act.Arg(1))
	assert.Empty(t, act.Arg(2))

	act, err = decodeAction(actMenuClose)
	require.NoError(t, err)
	assert.Empty(t, act.Args)
}

func TestEncodeAction_FitsFeedbackPayload(t *testing.T) {
	id := "0b9f4fd4-0a3e-4a43-9d39-6a3c57b3f0aa"
	assert.LessOrEqual(t, len(encodeAction(actFeedback, id, "4")), maxCallbackData)
}

func TestEncodeAction_PanicsOverLimit(t *testing.T) {
	assert.Panics(t, func() { encodeAction(actTaskEdit, strings.Repeat("x", maxCallbackData)) })
}

func TestDecodeAction_Invalid(t *testing.T) {
	_, err := decodeAction("")
	assert.Error(t, err)

	_, err = decodeAction(strings.Repeat("x", maxCallbackData+1))
	assert.Error(t, err)
}
