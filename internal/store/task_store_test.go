package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/store"
	"github.com/nhle/taskbot/tests/testutil"
)

func newTask(name string, due time.Time) model.Task {
	return model.Task{
		GuildID:         "guild-1",
		InstructorID:    "instructor-1",
		AssigneeID:      "assignee-1",
		Name:            name,
		Due:             due,
		OriginMessageID: "origin-msg",
		OriginChannelID: "origin-chan",
	}
}

func TestCreateTask(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	due := time.Now().Add(48 * time.Hour)

	id, err := s.CreateTask(ctx, newTask("レポート提出", due))
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "レポート提出", got.Name)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, "assignee-1", got.AssigneeID)
	assert.WithinDuration(t, due, got.Due, time.Second)
	assert.False(t, got.ReminderSent)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestCreateTaskEmptyName(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.CreateTask(context.Background(), newTask("   ", time.Now()))
	require.Error(t, err)
}

func TestCreateTaskIDsAreMonotonic(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first, err := s.CreateTask(ctx, newTask("one", time.Now()))
	require.NoError(t, err)
	second, err := s.CreateTask(ctx, newTask("two", time.Now()))
	require.NoError(t, err)

	assert.Greater(t, second, first)
}

func TestGetTaskByIDNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.GetTaskByID(context.Background(), 999)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestUpdateStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, newTask("task", time.Now()))
	require.NoError(t, err)
	before, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.UpdateStatus(ctx, id, model.StatusAccepted))

	after, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, after.Status)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt),
		"updated_at must advance on every status change")
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, newTask("task", time.Now()))
	require.NoError(t, err)

	require.Error(t, s.UpdateStatus(ctx, id, model.Status("paused")))

	got, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestUpdateStatusMissingTask(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.UpdateStatus(context.Background(), 42, model.StatusAccepted)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestSetThreadAndMessage(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTask(ctx, newTask("task", time.Now()))
	require.NoError(t, err)

	require.NoError(t, s.SetThreadAndMessage(ctx, id, "thread-9", "msg-9"))

	got, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "thread-9", got.ThreadID)
	assert.Equal(t, "msg-9", got.OriginMessageID)
}

func TestListReminderCandidates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()
	window := time.Hour

	mk := func(name string, due time.Time, status model.Status) int64 {
		id, err := s.CreateTask(ctx, newTask(name, due))
		require.NoError(t, err)
		if status != model.StatusPending {
			require.NoError(t, s.UpdateStatus(ctx, id, status))
		}
		return id
	}

	inWindow := mk("due soon", now.Add(30*time.Minute), model.StatusAccepted)
	mk("still pending", now.Add(30*time.Minute), model.StatusPending)
	mk("already overdue", now.Add(-10*time.Minute), model.StatusAccepted)
	mk("too far out", now.Add(2*time.Hour), model.StatusAccepted)
	edge := mk("exactly at window edge", now.Add(window), model.StatusAccepted)

	got, err := s.ListReminderCandidates(ctx, now, window)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, inWindow, got[0].ID)
	assert.Equal(t, edge, got[1].ID)
}

func TestListReminderCandidatesSkipsReminded(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	id, err := s.CreateTask(ctx, newTask("task", now.Add(30*time.Minute)))
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, id, model.StatusAccepted))
	require.NoError(t, s.MarkReminderSent(ctx, id))

	got, err := s.ListReminderCandidates(ctx, now, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, got)

	task, err := s.GetTaskByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, task.ReminderSent)
}

func TestAdmins(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	ok, err := s.IsAdmin(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AddAdmin(ctx, "u1", "g1"))
	// Granting twice is a no-op.
	require.NoError(t, s.AddAdmin(ctx, "u1", "g1"))

	ok, err = s.IsAdmin(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Privilege is per guild.
	ok, err = s.IsAdmin(ctx, "u1", "g2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsInstructorDefaultsFalse(t *testing.T) {
	s := testutil.NewTestStore(t)

	ok, err := s.IsInstructor(context.Background(), "u1", "g1")
	require.NoError(t, err)
	assert.False(t, ok)
}
