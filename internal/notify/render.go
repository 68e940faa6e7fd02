// Package notify renders task state into cards and delivers them through a
// platform.Messenger: the assignee's personal channel, the detail thread,
// and the instructor. Delivery is best effort; failures are reported through
// DeliveryResult values and never fail the triggering operation.
package notify

import (
	"fmt"
	"strings"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/platform"
)

// Embed colors per status.
var statusColors = map[model.Status]int{
	model.StatusPending:   0xED4245,
	model.StatusAccepted:  0xF1C40F,
	model.StatusCompleted: 0x2ECC71,
	model.StatusDeclined:  0x607D8B,
	model.StatusAbandoned: 0xE67E22,
}

// statusGlyphs prefix thread titles and mark status lines.
var statusGlyphs = map[model.Status]string{
	model.StatusPending:   "🟥",
	model.StatusAccepted:  "🟨",
	model.StatusCompleted: "🟩",
	model.StatusDeclined:  "⚪",
	model.StatusAbandoned: "⚠️",
}

// statusNames are the user-facing status labels.
var statusNames = map[model.Status]string{
	model.StatusPending:   "未受託",
	model.StatusAccepted:  "進行中",
	model.StatusCompleted: "完了",
	model.StatusDeclined:  "辞退",
	model.StatusAbandoned: "問題",
}

const (
	fallbackGlyph = "⚪"
	fallbackColor = 0x5865F2
)

// knownGlyphs is every glyph a thread title may start with, including the
// legacy ❌ prefix still present on old threads.
var knownGlyphs = []string{"🟥", "🟨", "🟩", "⚠️", "❌", "⚪"}

// StatusGlyph returns the glyph for a status, or a neutral one for unknown
// statuses.
func StatusGlyph(s model.Status) string {
	if g, ok := statusGlyphs[s]; ok {
		return g
	}
	return fallbackGlyph
}

// StatusLabel returns the glyph and user-facing name for a status.
func StatusLabel(s model.Status) string {
	name, ok := statusNames[s]
	if !ok {
		name = string(s)
	}
	return StatusGlyph(s) + " " + name
}

func statusColor(s model.Status) int {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return fallbackColor
}

// SummaryCard builds the minimal per-channel card: title and due timestamp
// only, no action controls.
func SummaryCard(t *model.Task) *platform.Card {
	return &platform.Card{
		Title:       "📋 " + t.Name,
		Description: "期日: " + platform.TimestampTag(t.Due.Unix(), "F"),
		Color:       statusColors[model.StatusAccepted],
	}
}

// DetailCard builds the full status card shown in the detail thread.
func DetailCard(t *model.Task) *platform.Card {
	return &platform.Card{
		Title: "📋 " + t.Name,
		Color: statusColor(t.Status),
		Fields: []platform.CardField{
			{Name: "期日", Value: platform.TimestampTag(t.Due.Unix(), "F"), Inline: true},
			{Name: "状態", Value: StatusLabel(t.Status), Inline: true},
			{Name: "更新", Value: platform.TimestampTag(t.UpdatedAt.Unix(), "R"), Inline: true},
		},
		Footer: fmt.Sprintf("Task ID: %d", t.ID),
	}
}

// ReminderCard builds the one-time due-soon reminder card.
func ReminderCard(t *model.Task) *platform.Card {
	return &platform.Card{
		Title:       "⏰ Task Reminder",
		Description: fmt.Sprintf("**%s**\nDue in less than 1 hour!", t.Name),
		Color:       statusColors[model.StatusAbandoned],
		Fields: []platform.CardField{
			{Name: "Due", Value: platform.TimestampTag(t.Due.Unix(), "F"), Inline: true},
		},
	}
}

// TaskActions returns the action buttons for the task's current status.
func TaskActions(t *model.Task) []platform.Action {
	kinds := model.ActionsFor(t.Status)
	actions := make([]platform.Action, 0, len(kinds))
	for _, k := range kinds {
		actions = append(actions, platform.Action{Kind: k, TaskID: t.ID})
	}
	return actions
}

// ThreadTitle builds the detail thread title for a task, prefixed with its
// status glyph.
func ThreadTitle(t *model.Task) string {
	return fmt.Sprintf("%s %s - 詳細", StatusGlyph(t.Status), t.Name)
}

// retitle replaces a leading status glyph in current with glyph, or prefixes
// the title when no known glyph is present.
func retitle(current, glyph string) string {
	for _, g := range knownGlyphs {
		if strings.HasPrefix(current, g) {
			return strings.TrimLeft(glyph+current[len(g):], " ")
		}
	}
	return strings.TrimLeft(glyph+" "+current, " ")
}
