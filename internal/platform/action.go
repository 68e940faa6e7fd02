package platform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nhle/taskbot/internal/model"
)

// actionIDPrefix namespaces this bot's component identifiers so foreign
// components are rejected cleanly.
const actionIDPrefix = "task"

// EncodeActionID serializes an Action into an opaque component identifier.
// DecodeActionID is its only inverse; no call site splits the string itself.
func EncodeActionID(a Action) string {
	return fmt.Sprintf("%s:%s:%d", actionIDPrefix, a.Kind, a.TaskID)
}

// DecodeActionID parses a component identifier produced by EncodeActionID.
func DecodeActionID(id string) (Action, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != actionIDPrefix {
		return Action{}, fmt.Errorf("not a task action id: %q", id)
	}

	kind := model.ActionKind(parts[1])
	if _, ok := kind.Result(); !ok {
		return Action{}, fmt.Errorf("unknown action kind %q", parts[1])
	}

	taskID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Action{}, fmt.Errorf("bad task id in action %q: %w", id, err)
	}

	return Action{Kind: kind, TaskID: taskID}, nil
}
