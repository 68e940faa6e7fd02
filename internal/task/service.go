// Package task enforces the task lifecycle: which transitions are legal,
// who may trigger them, and the ordered side effects a transition produces.
package task

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/taskbot/internal/model"
	"github.com/nhle/taskbot/internal/notify"
	"github.com/nhle/taskbot/internal/store"
)

// ErrNotAssignee is returned when someone other than the task's assignee
// attempts a transition. No state is mutated.
var ErrNotAssignee = errors.New("actor is not the task assignee")

// ErrIllegalTransition is returned when the requested action is not in the
// action set of the task's current status.
var ErrIllegalTransition = errors.New("action not available in current status")

// Service owns task creation and lifecycle transitions. All mutations go
// through the store; views are re-rendered from the stored row, never from
// in-memory copies.
type Service struct {
	store store.Store
	disp  *notify.Dispatcher
	log   *zap.Logger
}

// NewService creates a lifecycle service.
func NewService(st store.Store, disp *notify.Dispatcher, log *zap.Logger) *Service {
	return &Service{store: st, disp: disp, log: log}
}

// Assign creates a pending task and announces it. The returned
// DeliveryResult reports partial notification failures; task creation
// itself only fails on validation or store errors.
func (s *Service) Assign(ctx context.Context, t model.Task) (*model.Task, *notify.DeliveryResult, error) {
	id, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return nil, nil, err
	}

	created, err := s.store.GetTaskByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("task %d: %w", id, store.ErrReadBack)
	}

	res := s.disp.AnnounceTask(ctx, created)
	return created, res, nil
}

// TransitionRequest names a lifecycle action against a task, the acting
// user, and the location of the detail card to re-render in place.
type TransitionRequest struct {
	TaskID    int64
	ActorID   string
	Action    model.ActionKind
	ChannelID string
	MessageID string
}

// Transition applies a lifecycle action. Authorization and legality are
// checked before any mutation; the side effects then run in a fixed order:
// persist, re-render the detail card, retitle the thread, notify the
// instructor. Side-effect failures are best effort and reported through the
// DeliveryResult.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*model.Task, *notify.DeliveryResult, error) {
	t, err := s.store.GetTaskByID(ctx, req.TaskID)
	if err != nil {
		return nil, nil, err
	}

	if req.ActorID != t.AssigneeID {
		return nil, nil, fmt.Errorf("task %d: %w", t.ID, ErrNotAssignee)
	}

	if !actionAllowed(t.Status, req.Action) {
		return nil, nil, fmt.Errorf("task %d: %s from %s: %w",
			t.ID, req.Action, t.Status, ErrIllegalTransition)
	}

	next, ok := req.Action.Result()
	if !ok {
		return nil, nil, fmt.Errorf("task %d: %s: %w", t.ID, req.Action, ErrIllegalTransition)
	}

	if err := s.store.UpdateStatus(ctx, t.ID, next); err != nil {
		return nil, nil, err
	}

	updated, err := s.store.GetTaskByID(ctx, t.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("task %d: %w", t.ID, store.ErrReadBack)
	}

	res := &notify.DeliveryResult{}
	s.applySideEffects(ctx, updated, req, res)
	return updated, res, nil
}

// applySideEffects runs the user-visible consequences of a transition in
// order. Failures are logged and recorded but never abort later steps.
func (s *Service) applySideEffects(
	ctx context.Context,
	t *model.Task,
	req TransitionRequest,
	res *notify.DeliveryResult,
) {
	if req.ChannelID != "" && req.MessageID != "" {
		if err := s.disp.RedrawDetail(ctx, t, req.ChannelID, req.MessageID); err != nil {
			res.Fail(notify.StepDetail, err)
			s.log.Warn("detail redraw failed", zap.Int64("task_id", t.ID), zap.Error(err))
		}
	}

	if err := s.disp.RenameThreadForStatus(ctx, t); err != nil {
		res.Fail(notify.StepRename, err)
		s.log.Warn("thread rename failed", zap.Int64("task_id", t.ID), zap.Error(err))
	}

	if err := s.disp.NotifyStatusChange(ctx, t); err != nil {
		res.Fail(notify.StepInstructor, err)
		s.log.Warn("instructor notification failed", zap.Int64("task_id", t.ID), zap.Error(err))
	}
}

// actionAllowed reports whether action is in the fixed action set exposed
// for status.
func actionAllowed(status model.Status, action model.ActionKind) bool {
	for _, a := range model.ActionsFor(status) {
		if a == action {
			return true
		}
	}
	return false
}
