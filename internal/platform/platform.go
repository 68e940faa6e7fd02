// Package platform defines the chat-platform contract consumed by the core
// components. It is SDK-free: the Discord implementation lives in the
// discord subpackage, and tests substitute a recorder.
package platform

import (
	"context"
	"fmt"

	"github.com/nhle/taskbot/internal/model"
)

// CardField is a single labeled value on a card.
type CardField struct {
	Name   string
	Value  string
	Inline bool
}

// Card is a renderable status card, mapped to an embed on Discord.
type Card struct {
	Title       string
	Description string
	Color       int
	Fields      []CardField
	Footer      string
}

// Action is a button the user can press on a card, carrying the lifecycle
// action kind and the task it applies to.
type Action struct {
	Kind   model.ActionKind
	TaskID int64
}

// Mention formats a user mention for message content.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// TimestampTag formats a unix timestamp using the platform's rich
// timestamp markup. Style "F" renders a full date, "R" a relative one.
func TimestampTag(unix int64, style string) string {
	return fmt.Sprintf("<t:%d:%s>", unix, style)
}

// Messenger is the transport contract the dispatcher and scanner speak.
// Implementations return errors for delivery failures and never decide
// fallback policy themselves.
type Messenger interface {
	// EnsurePersonalChannel resolves or lazily creates the private
	// per-user channel in a guild and returns its id.
	EnsurePersonalChannel(ctx context.Context, guildID, userID string) (string, error)

	// EnsureManagementChannel resolves or lazily creates the shared
	// management channel in a guild and returns its id.
	EnsureManagementChannel(ctx context.Context, guildID string) (string, error)

	// SendCard posts content and an optional card with action buttons to
	// a channel, returning the new message id.
	SendCard(ctx context.Context, channelID, content string, card *Card, actions []Action) (string, error)

	// SendDirect delivers content and an optional card to a user's
	// direct-message channel, returning the new message id.
	SendDirect(ctx context.Context, userID, content string, card *Card, actions []Action) (string, error)

	// EditCard replaces the card and action set of an existing message.
	EditCard(ctx context.Context, channelID, messageID string, card *Card, actions []Action) error

	// StartThread creates a thread named name off the given message, or
	// off the channel itself when messageID is empty, returning the
	// thread id.
	StartThread(ctx context.Context, channelID, messageID, name string) (string, error)

	// ThreadName returns the current title of a thread.
	ThreadName(ctx context.Context, threadID string) (string, error)

	// RenameThread replaces a thread's title.
	RenameThread(ctx context.Context, threadID, name string) error

	// DisplayName resolves a user's display name within a guild, falling
	// back to the bare id when the member cannot be resolved.
	DisplayName(ctx context.Context, guildID, userID string) string
}
