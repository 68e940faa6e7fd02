package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/platform"
	"github.com/nhle/taskbot/internal/store"
)

// Dispatcher delivers task state to the people who need to see it: a
// compact summary in the assignee's personal channel, a detailed card in
// the task's thread, and change notifications to the instructor.
type Dispatcher struct {
	store   store.Store
	msgr    platform.Messenger
	renames *renameLimiter
	log     *zap.Logger
}

// NewDispatcher creates a dispatcher with its own rename limiter.
func NewDispatcher(
	st store.Store,
	msgr platform.Messenger,
	renameCooldown time.Duration,
	log *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:   st,
		msgr:    msgr,
		renames: newRenameLimiter(renameCooldown, nil),
		log:     log,
	}
}

// AnnounceTask delivers a freshly created task: summary to the personal
// channel (direct message when the channel cannot be provided), detail card
// with the action set in a new thread, thread/message ids persisted back
// onto the task, and an assignment notice to the instructor. Every step is
// best effort; the result reports what failed.
func (d *Dispatcher) AnnounceTask(ctx context.Context, t *model.Task) *DeliveryResult {
	res := &DeliveryResult{}

	channelID, summaryID := d.sendSummary(ctx, t, res)

	var threadID string
	if channelID != "" {
		threadID = d.openDetailThread(ctx, t, channelID, summaryID, res)
	}

	if threadID != "" {
		if err := d.store.SetThreadAndMessage(ctx, t.ID, threadID, summaryID); err != nil {
			res.Fail(StepPersistIDs, err)
			d.log.Error("persisting thread ids failed",
				zap.Int64("task_id", t.ID), zap.Error(err))
		} else {
			t.ThreadID = threadID
		}
	}

	msg := fmt.Sprintf("📣 タスクを指示しました\nタスク: %s\n担当: %s\n期日: %s",
		t.Name, platform.Mention(t.AssigneeID), platform.TimestampTag(t.Due.Unix(), "F"))
	if threadID != "" {
		msg += "\nスレッド: <#" + threadID + ">"
	}
	if err := d.notifyInstructor(ctx, t, msg); err != nil {
		res.Fail(StepInstructor, err)
		d.log.Warn("instructor notification failed",
			zap.Int64("task_id", t.ID), zap.Error(err))
	}

	return res
}

// sendSummary posts the minimal summary card, preferring the personal
// channel and falling back to a direct message. It returns the channel id
// (empty for the DM path) and the summary message id.
func (d *Dispatcher) sendSummary(ctx context.Context, t *model.Task, res *DeliveryResult) (string, string) {
	summary := SummaryCard(t)
	mention := platform.Mention(t.AssigneeID)

	channelID, err := d.msgr.EnsurePersonalChannel(ctx, t.GuildID, t.AssigneeID)
	if err != nil {
		res.Fail(StepPersonalChannel, err)
		d.log.Warn("personal channel unavailable, falling back to DM",
			zap.Int64("task_id", t.ID), zap.Error(err))

		msgID, dmErr := d.msgr.SendDirect(ctx, t.AssigneeID, mention, summary, nil)
		if dmErr != nil {
			res.Fail(StepSummary, dmErr)
			d.log.Error("summary delivery failed",
				zap.Int64("task_id", t.ID), zap.Error(dmErr))
			return "", ""
		}
		return "", msgID
	}

	msgID, err := d.msgr.SendCard(ctx, channelID, mention, summary, nil)
	if err != nil {
		res.Fail(StepSummary, err)
		d.log.Error("summary delivery failed",
			zap.Int64("task_id", t.ID), zap.Error(err))
		return channelID, ""
	}
	return channelID, msgID
}

// openDetailThread starts the detail thread (off the summary message when
// one exists, off the channel otherwise) and posts the detail card carrying
// the task's action set. Returns the thread id, or empty on failure.
func (d *Dispatcher) openDetailThread(
	ctx context.Context,
	t *model.Task,
	channelID, summaryID string,
	res *DeliveryResult,
) string {
	threadID, err := d.msgr.StartThread(ctx, channelID, summaryID, ThreadTitle(t))
	if err != nil && summaryID != "" {
		// Threading off the message may be unavailable; retry off the
		// channel itself.
		threadID, err = d.msgr.StartThread(ctx, channelID, "", ThreadTitle(t))
	}
	if err != nil {
		res.Fail(StepThread, err)
		d.log.Warn("detail thread creation failed",
			zap.Int64("task_id", t.ID), zap.Error(err))
		return ""
	}

	if _, err := d.msgr.SendCard(ctx, threadID, "", DetailCard(t), TaskActions(t)); err != nil {
		res.Fail(StepDetail, err)
		d.log.Warn("detail card delivery failed",
			zap.Int64("task_id", t.ID), zap.Error(err))
	}
	return threadID
}

// RedrawDetail re-renders the detail card in place, reflecting the task's
// current status and its available action set.
func (d *Dispatcher) RedrawDetail(ctx context.Context, t *model.Task, channelID, messageID string) error {
	if err := d.msgr.EditCard(ctx, channelID, messageID, DetailCard(t), TaskActions(t)); err != nil {
		return fmt.Errorf("redrawing detail card for task %d: %w", t.ID, err)
	}
	return nil
}

// RenameThreadForStatus retitles the task's detail thread with the glyph of
// its current status. Renames inside the cooldown window are silently
// dropped. A title that already carries the right glyph is left untouched
// without consuming the cooldown.
func (d *Dispatcher) RenameThreadForStatus(ctx context.Context, t *model.Task) error {
	if t.ThreadID == "" {
		return nil
	}
	if !d.renames.allow(t.ThreadID) {
		return nil
	}

	current, err := d.msgr.ThreadName(ctx, t.ThreadID)
	if err != nil {
		return fmt.Errorf("reading thread title for task %d: %w", t.ID, err)
	}

	next := retitle(current, StatusGlyph(t.Status))
	if next == current {
		return nil
	}

	if err := d.msgr.RenameThread(ctx, t.ThreadID, next); err != nil {
		return fmt.Errorf("renaming thread for task %d: %w", t.ID, err)
	}
	d.renames.record(t.ThreadID)
	return nil
}

// NotifyStatusChange tells the instructor that the task moved to its
// current status, by direct message with a management-channel fallback.
func (d *Dispatcher) NotifyStatusChange(ctx context.Context, t *model.Task) error {
	msg := fmt.Sprintf("📣 タスク状態が更新されました\nタスク: %s\n担当: %s\n状態: %s",
		t.Name, platform.Mention(t.AssigneeID), StatusLabel(t.Status))
	if t.ThreadID != "" {
		msg += "\nスレッド: <#" + t.ThreadID + ">"
	}
	return d.notifyInstructor(ctx, t, msg)
}

// notifyInstructor direct-messages the instructor, falling back to posting
// in the shared management channel with a mention when the DM cannot be
// delivered.
func (d *Dispatcher) notifyInstructor(ctx context.Context, t *model.Task, msg string) error {
	if _, err := d.msgr.SendDirect(ctx, t.InstructorID, msg, nil, nil); err == nil {
		return nil
	}

	mgmtID, err := d.msgr.EnsureManagementChannel(ctx, t.GuildID)
	if err != nil {
		return fmt.Errorf("management channel fallback: %w", err)
	}
	content := platform.Mention(t.InstructorID) + "\n" + msg
	if _, err := d.msgr.SendCard(ctx, mgmtID, content, nil, nil); err != nil {
		return fmt.Errorf("management channel fallback: %w", err)
	}
	return nil
}

// DeliverReminder sends the one-time due-soon reminder to the assignee:
// direct message first, personal channel second. An error means both paths
// failed; the caller still marks the reminder as sent.
func (d *Dispatcher) DeliverReminder(ctx context.Context, t *model.Task) error {
	card := ReminderCard(t)

	if _, err := d.msgr.SendDirect(ctx, t.AssigneeID, "", card, nil); err == nil {
		return nil
	}

	channelID, err := d.msgr.EnsurePersonalChannel(ctx, t.GuildID, t.AssigneeID)
	if err != nil {
		return fmt.Errorf("reminder fallback for task %d: %w", t.ID, err)
	}
	if _, err := d.msgr.SendCard(ctx, channelID, platform.Mention(t.AssigneeID), card, nil); err != nil {
		return fmt.Errorf("reminder fallback for task %d: %w", t.ID, err)
	}
	return nil
}
