package remind_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/notify"
	"github.com/nhle/taskbot/internal/remind"
	"github.com/nhle/taskbot/internal/store"
	"github.com/nhle/taskbot/tests/testutil"
)

func newScanner(t *testing.T) (*remind.Scanner, *store.SQLiteStore, *testutil.FakeMessenger) {
	t.Helper()
	st := testutil.NewTestStore(t)
	msgr := testutil.NewFakeMessenger()
	disp := notify.NewDispatcher(st, msgr, 30*time.Second, zap.NewNop())
	s := remind.New(st, disp, 5*time.Minute, time.Hour, zap.NewNop())
	return s, st, msgr
}

func addTask(t *testing.T, st *store.SQLiteStore, name string, due time.Time, status model.Status) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := st.CreateTask(ctx, model.Task{
		GuildID:      "guild-1",
		InstructorID: "instructor-1",
		AssigneeID:   "assignee-1",
		Name:         name,
		Due:          due,
	})
	require.NoError(t, err)
	if status != model.StatusPending {
		require.NoError(t, st.UpdateStatus(ctx, id, status))
	}
	return id
}

func TestSweepRemindsOnlyWindowedAcceptedTasks(t *testing.T) {
	s, st, msgr := newScanner(t)
	ctx := context.Background()
	now := time.Now()

	due := addTask(t, st, "間もなく期限", now.Add(30*time.Minute), model.StatusAccepted)
	addTask(t, st, "未受託", now.Add(30*time.Minute), model.StatusPending)
	addTask(t, st, "期限切れ", now.Add(-time.Minute), model.StatusAccepted)
	addTask(t, st, "まだ先", now.Add(90*time.Minute), model.StatusAccepted)
	addTask(t, st, "完了済み", now.Add(30*time.Minute), model.StatusCompleted)

	s.Sweep(ctx, now)

	dms := msgr.DirectMessages("assignee-1")
	require.Len(t, dms, 1)
	assert.Contains(t, dms[0].Card.Description, "間もなく期限")

	got, err := st.GetTaskByID(ctx, due)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent)
}

func TestSweepRemindsAtMostOnce(t *testing.T) {
	s, st, msgr := newScanner(t)
	ctx := context.Background()
	now := time.Now()

	addTask(t, st, "一度だけ", now.Add(30*time.Minute), model.StatusAccepted)

	s.Sweep(ctx, now)
	s.Sweep(ctx, now.Add(5*time.Minute))
	s.Sweep(ctx, now.Add(10*time.Minute))

	assert.Len(t, msgr.DirectMessages("assignee-1"), 1)
}

func TestSweepMarksSentEvenWhenDeliveryFails(t *testing.T) {
	s, st, msgr := newScanner(t)
	ctx := context.Background()
	now := time.Now()

	id := addTask(t, st, "届かない", now.Add(30*time.Minute), model.StatusAccepted)
	msgr.FailDirect = true
	msgr.FailPersonalChannel = true

	s.Sweep(ctx, now)

	got, err := st.GetTaskByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent, "failed reminders are never retried")

	// Later sweeps with delivery restored do not resurrect it.
	msgr.FailDirect = false
	msgr.FailPersonalChannel = false
	s.Sweep(ctx, now.Add(5*time.Minute))
	assert.Empty(t, msgr.DirectMessages("assignee-1"))
}

func TestSweepContinuesPastFailures(t *testing.T) {
	s, st, msgr := newScanner(t)
	ctx := context.Background()
	now := time.Now()

	first, err := st.CreateTask(ctx, model.Task{
		GuildID: "guild-1", InstructorID: "instructor-1",
		AssigneeID: "assignee-1", Name: "first", Due: now.Add(20 * time.Minute),
	})
	require.NoError(t, err)
	require.NoError(t, st.UpdateStatus(ctx, first, model.StatusAccepted))

	second, err := st.CreateTask(ctx, model.Task{
		GuildID: "guild-1", InstructorID: "instructor-1",
		AssigneeID: "assignee-2", Name: "second", Due: now.Add(40 * time.Minute),
	})
	require.NoError(t, err)
	require.NoError(t, st.UpdateStatus(ctx, second, model.StatusAccepted))

	msgr.FailDirect = true
	msgr.FailPersonalChannel = true
	s.Sweep(ctx, now)

	// Both candidates were processed; neither failure aborted the sweep.
	for _, id := range []int64{first, second} {
		got, err := st.GetTaskByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.ReminderSent, "task %d", id)
	}
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	s, _, _ := newScanner(t)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
