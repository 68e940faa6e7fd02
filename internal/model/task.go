package model

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusDeclined  Status = "declined"
	StatusAbandoned Status = "abandoned"
)

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCompleted, StatusDeclined, StatusAbandoned:
		return true
	}
	return false
}

// ActionKind identifies a lifecycle action a user can take on a task.
type ActionKind string

const (
	ActionAccept   ActionKind = "accept"
	ActionDecline  ActionKind = "decline"
	ActionComplete ActionKind = "complete"
	ActionAbandon  ActionKind = "abandon"
	ActionUndo     ActionKind = "undo"
)

// actionResults maps each action to the status it produces.
var actionResults = map[ActionKind]Status{
	ActionAccept:   StatusAccepted,
	ActionDecline:  StatusDeclined,
	ActionComplete: StatusCompleted,
	ActionAbandon:  StatusAbandoned,
	ActionUndo:     StatusAccepted,
}

// Result returns the status this action transitions a task into.
// The second return is false for unknown actions.
func (a ActionKind) Result() (Status, bool) {
	st, ok := actionResults[a]
	return st, ok
}

// statusActions is the fixed action set exposed for each status.
// Declined is terminal and offers no actions.
var statusActions = map[Status][]ActionKind{
	StatusPending:   {ActionAccept, ActionDecline},
	StatusAccepted:  {ActionComplete, ActionAbandon},
	StatusCompleted: {ActionUndo},
	StatusAbandoned: {ActionUndo, ActionComplete},
	StatusDeclined:  {},
}

// ActionsFor returns the actions available for a task in the given status.
// The returned slice must not be mutated.
func ActionsFor(s Status) []ActionKind {
	return statusActions[s]
}

// Task is a unit of work assigned by an instructor to a single assignee
// inside a guild, with a due date and a lifecycle status.
type Task struct {
	// ID is the store-assigned monotonic identifier.
	ID int64 `db:"id"`

	// GuildID is the Discord guild (server) the task belongs to.
	GuildID string `db:"guild_id"`

	// InstructorID is the user who created the task.
	InstructorID string `db:"instructor_id"`

	// AssigneeID is the single user responsible for the task.
	AssigneeID string `db:"assignee_id"`

	// Name is the free-text task title.
	Name string `db:"name"`

	// Due is the absolute due timestamp (naive local time).
	Due time.Time `db:"due"`

	// Status is the current lifecycle state (use the Status* constants).
	Status Status `db:"status"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	// OriginMessageID and OriginChannelID record where the task was
	// created. The summary message id overwrites OriginMessageID once
	// the announcement is delivered.
	OriginMessageID string `db:"origin_message"`
	OriginChannelID string `db:"origin_channel"`

	// ThreadID is the detail thread, empty until one is created.
	ThreadID string `db:"thread_id"`

	// ReminderSent is a one-shot flag; once true no further reminder
	// is ever delivered for this task.
	ReminderSent bool `db:"reminder_sent"`
}

// Admin is a (user, guild) pair granting administrative privilege.
type Admin struct {
	UserID  string    `db:"user_id"`
	GuildID string    `db:"guild_id"`
	AddedAt time.Time `db:"added_at"`
}

// Instructor is a delegated (user, guild) pair with optional target-user
// scoping. Present in the schema as a reserved extension point; no command
// currently exercises it.
type Instructor struct {
	UserID      string    `db:"user_id"`
	GuildID     string    `db:"guild_id"`
	TargetUsers string    `db:"target_users"`
	AddedAt     time.Time `db:"added_at"`
}
