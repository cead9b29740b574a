package sweeper

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/config"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/observer"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/utils"
)

// candidateBatchSize caps one page of breach candidates per tenant. Stamped
// conversations drop out of the candidate set, so paging drains naturally.
const candidateBatchSize = 100

// LifecycleService is the slice of the engine the sweeps drive.
type LifecycleService interface {
	CheckSlaBreach(ctx context.Context, conversationID string, slaWindow time.Duration, now time.Time) (bool, error)
	SweepOverdue(ctx context.Context, now time.Time) (int, error)
}

// Sweeper runs the periodic SLA and overdue-task sweeps across all active
// tenants.
type Sweeper struct {
	service          LifecycleService
	businessRepo     storage.BusinessRepo
	conversationRepo storage.ConversationRepo
	cfg              config.SweeperConfig
	engineCfg        config.EngineConfig

	cron *cron.Cron
	pool *ants.Pool
}

// New creates a sweeper. Start must be called before any sweep runs.
func New(service LifecycleService, businessRepo storage.BusinessRepo, conversationRepo storage.ConversationRepo, cfg config.SweeperConfig, engineCfg config.EngineConfig) *Sweeper {
	return &Sweeper{
		service:          service,
		businessRepo:     businessRepo,
		conversationRepo: conversationRepo,
		cfg:              cfg,
		engineCfg:        engineCfg,
		cron:             cron.New(),
	}
}

// Start registers the cron entries and launches the scheduler.
func (s *Sweeper) Start() error {
	log := logger.Log
	log.Info("Starting sweeper...",
		zap.String("sla_schedule", s.cfg.SLASchedule),
		zap.String("task_schedule", s.cfg.TaskSchedule),
		zap.Int("pool_size", s.cfg.PoolSize),
	)

	pool, err := ants.NewPool(s.cfg.PoolSize, ants.WithNonblocking(true))
	if err != nil {
		return err
	}
	s.pool = pool

	if _, err := s.cron.AddFunc(s.cfg.SLASchedule, func() {
		s.RunSlaSweep(context.Background(), utils.Now())
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.TaskSchedule, func() {
		s.RunTaskSweep(context.Background(), utils.Now())
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Info("Sweeper started")
	return nil
}

// Stop halts the scheduler, waits for running sweeps and releases the pool.
func (s *Sweeper) Stop() {
	log := logger.Log
	log.Info("Stopping sweeper...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	if s.pool != nil {
		s.pool.Release()
	}
	log.Info("Sweeper stopped")
}

// RunSlaSweep stamps SLA breaches on stale open conversations of every active
// tenant. Per-conversation checks fan out on the worker pool; one page of
// candidates is finished before the next is fetched.
func (s *Sweeper) RunSlaSweep(ctx context.Context, now time.Time) {
	start := time.Now()
	defer func() { observer.ObserveSweepDuration("sla", time.Since(start)) }()

	log := logger.FromContext(ctx).With(zap.String("sweep", "sla"))

	businesses, err := s.businessRepo.FindAllActive(ctx)
	if err != nil {
		log.Error("Failed to list active businesses for SLA sweep", zap.Error(err))
		return
	}

	cutoff := now.Add(-s.engineCfg.SLAWindow)
	for _, business := range businesses {
		tenantCtx := tenant.WithBusinessID(ctx, business.ID)
		s.sweepBusinessSla(tenantCtx, business.ID, cutoff, now, log)
	}

	log.Info("SLA sweep finished",
		zap.Int("businesses", len(businesses)),
		zap.Duration("duration", time.Since(start)),
	)
}

func (s *Sweeper) sweepBusinessSla(ctx context.Context, businessID string, cutoff, now time.Time, log *zap.Logger) {
	for {
		candidates, err := s.conversationRepo.FindBreachCandidates(ctx, cutoff, candidateBatchSize)
		if err != nil {
			log.Error("Failed to fetch breach candidates", zap.Error(err), zap.String("business_id", businessID))
			return
		}
		if len(candidates) == 0 {
			return
		}

		var wg sync.WaitGroup
		for _, candidate := range candidates {
			conversationID := candidate.ID
			wg.Add(1)
			task := func() {
				defer wg.Done()
				breached, checkErr := s.service.CheckSlaBreach(ctx, conversationID, s.engineCfg.SLAWindow, now)
				if checkErr != nil {
					log.Error("SLA check failed",
						zap.Error(checkErr),
						zap.String("business_id", businessID),
						zap.String("conversation_id", conversationID),
					)
					return
				}
				if breached {
					log.Info("Conversation SLA breached",
						zap.String("business_id", businessID),
						zap.String("conversation_id", conversationID),
					)
				}
			}
			if !s.submit(task, &wg, log) {
				// Already-submitted checks are still running; let them finish
				// before handing the pool back to the caller.
				wg.Wait()
				return
			}
		}
		wg.Wait()

		if len(candidates) < candidateBatchSize {
			return
		}
	}
}

// submit hands a task to the pool, retrying an overloaded pool until
// SubmitTimeout elapses. Returns false when the task was abandoned.
func (s *Sweeper) submit(task func(), wg *sync.WaitGroup, log *zap.Logger) bool {
	deadline := time.Now().Add(s.cfg.SubmitTimeout)
	for {
		err := s.pool.Submit(task)
		if err == nil {
			return true
		}
		if !errors.Is(err, ants.ErrPoolOverload) || time.Now().After(deadline) {
			wg.Done()
			log.Warn("Abandoning sweep task, worker pool unavailable", zap.Error(err))
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// RunTaskSweep promotes past-due open tasks to OVERDUE for every active
// tenant.
func (s *Sweeper) RunTaskSweep(ctx context.Context, now time.Time) {
	start := time.Now()
	defer func() { observer.ObserveSweepDuration("task", time.Since(start)) }()

	log := logger.FromContext(ctx).With(zap.String("sweep", "task"))

	businesses, err := s.businessRepo.FindAllActive(ctx)
	if err != nil {
		log.Error("Failed to list active businesses for task sweep", zap.Error(err))
		return
	}

	total := 0
	for _, business := range businesses {
		tenantCtx := tenant.WithBusinessID(ctx, business.ID)
		promoted, sweepErr := s.service.SweepOverdue(tenantCtx, now)
		if sweepErr != nil {
			log.Error("Overdue sweep failed", zap.Error(sweepErr), zap.String("business_id", business.ID))
			continue
		}
		if promoted > 0 {
			log.Info("Tasks marked overdue",
				zap.String("business_id", business.ID),
				zap.Int("promoted", promoted),
			)
		}
		total += promoted
	}

	log.Info("Task sweep finished",
		zap.Int("businesses", len(businesses)),
		zap.Int("promoted_total", total),
		zap.Duration("duration", time.Since(start)),
	)
}
