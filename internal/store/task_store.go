package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/taskbot/internal/model"
)

// CreateTask inserts a new pending task and returns its id. The row is read
// back immediately; if the read-back fails the caller gets ErrReadBack
// wrapped, because a task that cannot be observed must be reported as a
// creation failure.
func (s *SQLiteStore) CreateTask(ctx context.Context, t model.Task) (int64, error) {
	if strings.TrimSpace(t.Name) == "" {
		return 0, fmt.Errorf("task name must not be empty")
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			guild_id, instructor_id, assignee_id, name, due,
			status, created_at, updated_at, origin_message, origin_channel
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.GuildID, t.InstructorID, t.AssigneeID, t.Name, t.Due,
		model.StatusPending, now, now, t.OriginMessageID, t.OriginChannelID,
	)
	if err != nil {
		return 0, fmt.Errorf("creating task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading new task id: %w", err)
	}

	if _, err := s.GetTaskByID(ctx, id); err != nil {
		return 0, fmt.Errorf("task %d: %w", id, ErrReadBack)
	}
	return id, nil
}

// GetTaskByID retrieves a single task by its id.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id int64) (*model.Task, error) {
	var t model.Task
	err := s.db.GetContext(ctx, &t, "SELECT * FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return &t, nil
}

// ListReminderCandidates returns accepted, unreminded tasks due within the
// half-open window (now, now+window], ordered by due time.
func (s *SQLiteStore) ListReminderCandidates(
	ctx context.Context,
	now time.Time,
	window time.Duration,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks, `
		SELECT * FROM tasks
		WHERE status = ? AND reminder_sent = 0 AND due > ? AND due <= ?
		ORDER BY due`,
		model.StatusAccepted, now, now.Add(window),
	)
	if err != nil {
		return nil, fmt.Errorf("listing reminder candidates: %w", err)
	}
	return tasks, nil
}

// UpdateStatus persists a new status and stamps the update time.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?",
		status, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating task %d status: %w", id, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d: %w", id, ErrTaskNotFound)
	}
	return nil
}

// SetThreadAndMessage records the detail thread and summary message ids on
// a task after the announcement has been delivered.
func (s *SQLiteStore) SetThreadAndMessage(ctx context.Context, id int64, threadID, messageID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET thread_id = ?, origin_message = ? WHERE id = ?",
		threadID, messageID, id,
	)
	if err != nil {
		return fmt.Errorf("recording thread for task %d: %w", id, err)
	}
	return nil
}

// MarkReminderSent permanently sets the one-shot reminder flag.
func (s *SQLiteStore) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET reminder_sent = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("marking reminder sent for task %d: %w", id, err)
	}
	return nil
}

// AddAdmin idempotently grants admin privilege to (user, guild).
func (s *SQLiteStore) AddAdmin(ctx context.Context, userID, guildID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO admins (user_id, guild_id) VALUES (?, ?)",
		userID, guildID,
	)
	if err != nil {
		return fmt.Errorf("adding admin %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

// IsAdmin reports whether (user, guild) holds admin privilege.
func (s *SQLiteStore) IsAdmin(ctx context.Context, userID, guildID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM admins WHERE user_id = ? AND guild_id = ?",
		userID, guildID,
	)
	if err != nil {
		return false, fmt.Errorf("checking admin %s in guild %s: %w", userID, guildID, err)
	}
	return count > 0, nil
}

// IsInstructor reports whether (user, guild) is a delegated instructor.
func (s *SQLiteStore) IsInstructor(ctx context.Context, userID, guildID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM instructors WHERE user_id = ? AND guild_id = ?",
		userID, guildID,
	)
	if err != nil {
		return false, fmt.Errorf("checking instructor %s in guild %s: %w", userID, guildID, err)
	}
	return count > 0, nil
}
