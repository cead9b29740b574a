package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// sweepBatchSize bounds how many tasks one sweep page loads. Promoted tasks
// leave the OPEN set, so paging repeats the same query until it drains.
const sweepBatchSize = 100

// SweepOverdue promotes every OPEN task with dueAt before now to OVERDUE,
// one audit row per task. Idempotent: a task already promoted is no longer
// OPEN and is skipped by construction.
func (s *CrmService) SweepOverdue(ctx context.Context, now time.Time) (promoted int, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncTasksMarkedOverdue(businessID, promoted) }()

	for {
		batch, err := s.taskRepo.FindOpenDueBefore(ctx, now, sweepBatchSize)
		if err != nil {
			return promoted, err
		}
		if len(batch) == 0 {
			break
		}

		for _, openTask := range batch {
			before := openTask
			overdue := openTask
			overdue.Status = model.TaskStatusOverdue
			overdue.UpdatedAt = utils.Now()

			err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
				if err := s.taskRepo.Update(txCtx, overdue); err != nil {
					return err
				}
				return s.RecordAudit(txCtx, overdue.TableName(), overdue.ID, model.AuditActionOverdue, before, overdue)
			})
			if err != nil {
				return promoted, err
			}
			promoted++
		}

		if len(batch) < sweepBatchSize {
			break
		}
	}

	if promoted > 0 {
		log.Info("Overdue sweep promoted tasks",
			zap.Int("count", promoted),
			zap.Time("cutoff", now),
		)
	}
	return promoted, nil
}

// CompleteTask marks an OPEN or OVERDUE task DONE and stamps completedAt.
func (s *CrmService) CompleteTask(ctx context.Context, taskID string) (task *model.Task, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("task_complete", businessID, err) }()

	current, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(model.TaskStatusDone) {
		return nil, fmt.Errorf("%w: task %s → DONE", apperrors.ErrIllegalTransition, current.Status)
	}

	now := utils.Now()
	before := *current
	done := *current
	done.Status = model.TaskStatusDone
	done.CompletedAt = &now
	done.UpdatedAt = now

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.taskRepo.Update(txCtx, done); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, done.TableName(), done.ID, model.AuditActionComplete, before, done)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Task completed", zap.String("task_id", taskID))
	return &done, nil
}

// CancelTask cancels an OPEN or OVERDUE task.
func (s *CrmService) CancelTask(ctx context.Context, taskID string) (task *model.Task, err error) {
	log := logger.FromContext(ctx)

	businessID, err := tenant.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, err.Error())
	}
	defer func() { observer.IncEngineOperation("task_cancel", businessID, err) }()

	current, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(model.TaskStatusCanceled) {
		return nil, fmt.Errorf("%w: task %s → CANCELED", apperrors.ErrIllegalTransition, current.Status)
	}

	before := *current
	canceled := *current
	canceled.Status = model.TaskStatusCanceled
	canceled.UpdatedAt = utils.Now()

	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.taskRepo.Update(txCtx, canceled); err != nil {
			return err
		}
		return s.RecordAudit(txCtx, canceled.TableName(), canceled.ID, model.AuditActionCancel, before, canceled)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Task canceled", zap.String("task_id", taskID))
	return &canceled, nil
}
