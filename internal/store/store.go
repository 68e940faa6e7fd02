package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/taskbot/internal/model"
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ErrReadBack is returned when a row that was just written cannot be read
// back. The row may still exist; callers surface this as a creation failure
// and do not attempt cleanup.
var ErrReadBack = errors.New("read-back after write returned nothing")

// Store defines the persistence interface for tasks, admins, and delegated
// instructors. It is the sole authority for task state; rendered views are
// reconstructed from it on every render.
type Store interface {
	// CreateTask inserts a new pending task and returns its id, reading
	// the row back to guarantee it is observable.
	CreateTask(ctx context.Context, t model.Task) (int64, error)

	// GetTaskByID retrieves a single task, or ErrTaskNotFound.
	GetTaskByID(ctx context.Context, id int64) (*model.Task, error)

	// ListReminderCandidates returns accepted, unreminded tasks whose due
	// timestamp falls within the half-open window (now, now+window].
	ListReminderCandidates(ctx context.Context, now time.Time, window time.Duration) ([]model.Task, error)

	// UpdateStatus persists a new status and stamps the update time.
	UpdateStatus(ctx context.Context, id int64, status model.Status) error

	// SetThreadAndMessage records the detail thread and summary message
	// identifiers once the announcement has been delivered.
	SetThreadAndMessage(ctx context.Context, id int64, threadID, messageID string) error

	// MarkReminderSent permanently sets the one-shot reminder flag.
	MarkReminderSent(ctx context.Context, id int64) error

	// AddAdmin idempotently grants admin privilege to (user, guild).
	AddAdmin(ctx context.Context, userID, guildID string) error

	// IsAdmin reports whether (user, guild) holds admin privilege.
	IsAdmin(ctx context.Context, userID, guildID string) (bool, error)

	// IsInstructor reports whether (user, guild) is a delegated
	// instructor. Reserved; no command currently exercises it.
	IsInstructor(ctx context.Context, userID, guildID string) (bool, error)
}
