package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/notify"
	"github.com/nhle/taskbot/internal/store"
	"github.com/nhle/taskbot/internal/task"
	"github.com/nhle/taskbot/tests/testutil"
)

type fixture struct {
	store *store.SQLiteStore
	msgr  *testutil.FakeMessenger
	svc   *task.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := testutil.NewTestStore(t)
	msgr := testutil.NewFakeMessenger()
	disp := notify.NewDispatcher(st, msgr, 0, zap.NewNop())
	return &fixture{
		store: st,
		msgr:  msgr,
		svc:   task.NewService(st, disp, zap.NewNop()),
	}
}

func (f *fixture) assign(t *testing.T) *model.Task {
	t.Helper()
	created, res, err := f.svc.Assign(context.Background(), model.Task{
		GuildID:      "guild-1",
		InstructorID: "instructor-1",
		AssigneeID:   "assignee-1",
		Name:         "レポート提出",
		Due:          time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.True(t, res.OK(), "failures: %v", res.Failures())
	return created
}

func (f *fixture) transition(t *testing.T, id int64, actor string, kind model.ActionKind) (*model.Task, error) {
	t.Helper()
	updated, _, err := f.svc.Transition(context.Background(), task.TransitionRequest{
		TaskID:  id,
		ActorID: actor,
		Action:  kind,
	})
	return updated, err
}

func TestAssignCreatesPendingTask(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)

	assert.Equal(t, model.StatusPending, created.Status)
	assert.Positive(t, created.ID)

	// Announcement side effects: summary, detail thread, instructor DM.
	assert.Len(t, f.msgr.ChannelMessages("personal-assignee-1"), 1)
	assert.Len(t, f.msgr.Threads, 1)
	assert.Len(t, f.msgr.DirectMessages("instructor-1"), 1)
}

func TestAcceptTask(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)

	updated, err := f.transition(t, created.ID, "assignee-1", model.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, updated.Status)
	assert.Equal(t, []model.ActionKind{model.ActionComplete, model.ActionAbandon},
		model.ActionsFor(updated.Status))
}

func TestTransitionRejectsNonAssignee(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)

	for _, actor := range []string{"instructor-1", "bystander"} {
		_, err := f.transition(t, created.ID, actor, model.ActionAccept)
		assert.ErrorIs(t, err, task.ErrNotAssignee, "actor %s", actor)
	}

	// State was never mutated.
	got, err := f.store.GetTaskByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestTransitionMissingTask(t *testing.T) {
	f := newFixture(t)

	_, err := f.transition(t, 404, "assignee-1", model.ActionAccept)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestIllegalTransitions(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name    string
		path    []model.ActionKind // applied first, all legal
		illegal model.ActionKind
	}{
		{"complete before accept", nil, model.ActionComplete},
		{"abandon before accept", nil, model.ActionAbandon},
		{"undo from pending", nil, model.ActionUndo},
		{"accept twice", []model.ActionKind{model.ActionAccept}, model.ActionAccept},
		{"decline after accept", []model.ActionKind{model.ActionAccept}, model.ActionDecline},
		{"accept after decline", []model.ActionKind{model.ActionDecline}, model.ActionAccept},
		{"undo after decline", []model.ActionKind{model.ActionDecline}, model.ActionUndo},
		{"complete after complete", []model.ActionKind{model.ActionAccept, model.ActionComplete}, model.ActionComplete},
		{"decline after abandon", []model.ActionKind{model.ActionAccept, model.ActionAbandon}, model.ActionDecline},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			created := f.assign(t)
			for _, a := range tc.path {
				_, err := f.transition(t, created.ID, "assignee-1", a)
				require.NoError(t, err)
			}
			_, err := f.transition(t, created.ID, "assignee-1", tc.illegal)
			assert.ErrorIs(t, err, task.ErrIllegalTransition)
		})
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)

	steps := []struct {
		action model.ActionKind
		want   model.Status
	}{
		{model.ActionAccept, model.StatusAccepted},
		{model.ActionAbandon, model.StatusAbandoned},
		{model.ActionUndo, model.StatusAccepted},
		{model.ActionComplete, model.StatusCompleted},
		{model.ActionUndo, model.StatusAccepted},
		{model.ActionComplete, model.StatusCompleted},
	}

	for _, s := range steps {
		updated, err := f.transition(t, created.ID, "assignee-1", s.action)
		require.NoError(t, err)
		assert.Equal(t, s.want, updated.Status)
	}
}

func TestCompleteFromAbandoned(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)

	for _, a := range []model.ActionKind{model.ActionAccept, model.ActionAbandon, model.ActionComplete} {
		_, err := f.transition(t, created.ID, "assignee-1", a)
		require.NoError(t, err)
	}

	got, err := f.store.GetTaskByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestTransitionAdvancesUpdatedAt(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)

	time.Sleep(5 * time.Millisecond)
	updated, err := f.transition(t, created.ID, "assignee-1", model.ActionAccept)
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestTransitionNotifiesInstructor(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)

	before := len(f.msgr.DirectMessages("instructor-1"))
	_, err := f.transition(t, created.ID, "assignee-1", model.ActionAccept)
	require.NoError(t, err)

	dms := f.msgr.DirectMessages("instructor-1")
	require.Len(t, dms, before+1)
	assert.Contains(t, dms[len(dms)-1].Content, "タスク状態が更新されました")
	assert.Contains(t, dms[len(dms)-1].Content, "進行中")
}

func TestTransitionRedrawsDetailCard(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)

	_, _, err := f.svc.Transition(context.Background(), task.TransitionRequest{
		TaskID:    created.ID,
		ActorID:   "assignee-1",
		Action:    model.ActionAccept,
		ChannelID: "chan-1",
		MessageID: "detail-msg-1",
	})
	require.NoError(t, err)

	require.Len(t, f.msgr.Edits, 1)
	edit := f.msgr.Edits[0]
	require.NotNil(t, edit.Card)
	require.Len(t, edit.Actions, 2)
	assert.Equal(t, model.ActionComplete, edit.Actions[0].Kind)
	assert.Equal(t, model.ActionAbandon, edit.Actions[1].Kind)
}

func TestTransitionSideEffectFailureIsReported(t *testing.T) {
	f := newFixture(t)
	created := f.assign(t)
	f.msgr.FailSend = true

	updated, res, err := f.svc.Transition(context.Background(), task.TransitionRequest{
		TaskID:    created.ID,
		ActorID:   "assignee-1",
		Action:    model.ActionAccept,
		ChannelID: "chan-1",
		MessageID: "detail-msg-1",
	})
	require.NoError(t, err, "side-effect failures never fail the transition")
	assert.Equal(t, model.StatusAccepted, updated.Status)
	assert.True(t, res.FailedStep(notify.StepDetail))
}
