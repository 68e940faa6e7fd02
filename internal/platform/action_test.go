package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskbot/internal/model"
)

func TestActionIDRoundTrip(t *testing.T) {
	kinds := []model.ActionKind{
		model.ActionAccept, model.ActionDecline, model.ActionComplete,
		model.ActionAbandon, model.ActionUndo,
	}

	for _, kind := range kinds {
		a := Action{Kind: kind, TaskID: 42}
		decoded, err := DecodeActionID(EncodeActionID(a))
		require.NoError(t, err, kind)
		assert.Equal(t, a, decoded)
	}
}

func TestDecodeActionIDRejectsForeignIDs(t *testing.T) {
	for _, id := range []string{
		"",
		"task",
		"task:accept",
		"other:accept:1",
		"task:promote:1",
		"task:accept:notanumber",
		"accept_task_42",
	} {
		_, err := DecodeActionID(id)
		assert.Error(t, err, id)
	}
}
