package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/config"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	storagemock "gitlab.com/timkado/api/daisi-crm-engine/internal/storage/mock"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
)

// LifecycleServiceMock mocks the engine operations the sweeps drive.
type LifecycleServiceMock struct {
	mock.Mock
}

func (m *LifecycleServiceMock) CheckSlaBreach(ctx context.Context, conversationID string, slaWindow time.Duration, now time.Time) (bool, error) {
	args := m.Called(ctx, conversationID, slaWindow, now)
	return args.Bool(0), args.Error(1)
}

func (m *LifecycleServiceMock) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func newTestSweeper(t *testing.T) (*Sweeper, *LifecycleServiceMock, *storagemock.BusinessRepoMock, *storagemock.ConversationRepoMock) {
	logger.Log = zaptest.NewLogger(t).Named("test")

	service := new(LifecycleServiceMock)
	businessRepo := new(storagemock.BusinessRepoMock)
	conversationRepo := new(storagemock.ConversationRepoMock)

	cfg := config.SweeperConfig{
		SLASchedule:   "*/5 * * * *",
		TaskSchedule:  "*/10 * * * *",
		PoolSize:      4,
		SubmitTimeout: time.Second,
	}
	engineCfg := config.EngineConfig{SLAWindow: 4 * time.Hour}

	s := New(service, businessRepo, conversationRepo, cfg, engineCfg)
	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(true))
	require.NoError(t, err)
	s.pool = pool
	t.Cleanup(pool.Release)

	return s, service, businessRepo, conversationRepo
}

func TestRunSlaSweep_ChecksEveryCandidate(t *testing.T) {
	s, service, businessRepo, conversationRepo := newTestSweeper(t)
	now := time.Now()
	cutoff := now.Add(-4 * time.Hour)

	businessRepo.On("FindAllActive", mock.Anything).Return([]model.Business{
		*model.NewBusiness(&model.Business{ID: "biz-1"}),
	}, nil)

	candidates := []model.Conversation{
		*model.NewConversation(&model.Conversation{ID: "conv-1", BusinessID: "biz-1"}),
		*model.NewConversation(&model.Conversation{ID: "conv-2", BusinessID: "biz-1"}),
	}
	conversationRepo.On("FindBreachCandidates", mock.Anything, cutoff, candidateBatchSize).Return(candidates, nil).Once()

	// The check runs under the candidate's tenant context.
	tenantMatcher := mock.MatchedBy(func(ctx context.Context) bool {
		businessID, err := tenant.FromContext(ctx)
		return err == nil && businessID == "biz-1"
	})
	service.On("CheckSlaBreach", tenantMatcher, "conv-1", 4*time.Hour, now).Return(true, nil)
	service.On("CheckSlaBreach", tenantMatcher, "conv-2", 4*time.Hour, now).Return(false, nil)

	s.RunSlaSweep(context.Background(), now)

	service.AssertExpectations(t)
	conversationRepo.AssertExpectations(t)
}

func TestRunSlaSweep_NoActiveBusinesses(t *testing.T) {
	s, service, businessRepo, conversationRepo := newTestSweeper(t)

	businessRepo.On("FindAllActive", mock.Anything).Return([]model.Business{}, nil)

	s.RunSlaSweep(context.Background(), time.Now())

	conversationRepo.AssertNotCalled(t, "FindBreachCandidates", mock.Anything, mock.Anything, mock.Anything)
	service.AssertNotCalled(t, "CheckSlaBreach", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunSlaSweep_CheckFailureDoesNotAbortSweep(t *testing.T) {
	s, service, businessRepo, conversationRepo := newTestSweeper(t)
	now := time.Now()

	businessRepo.On("FindAllActive", mock.Anything).Return([]model.Business{
		*model.NewBusiness(&model.Business{ID: "biz-1"}),
	}, nil)
	conversationRepo.On("FindBreachCandidates", mock.Anything, mock.Anything, candidateBatchSize).Return([]model.Conversation{
		*model.NewConversation(&model.Conversation{ID: "conv-1", BusinessID: "biz-1"}),
		*model.NewConversation(&model.Conversation{ID: "conv-2", BusinessID: "biz-1"}),
	}, nil).Once()

	service.On("CheckSlaBreach", mock.Anything, "conv-1", mock.Anything, now).Return(false, assert.AnError)
	service.On("CheckSlaBreach", mock.Anything, "conv-2", mock.Anything, now).Return(true, nil)

	s.RunSlaSweep(context.Background(), now)

	service.AssertExpectations(t)
}

func TestRunSlaSweep_SaturatedPoolFinishesInFlightChecks(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")

	service := new(LifecycleServiceMock)
	businessRepo := new(storagemock.BusinessRepoMock)
	conversationRepo := new(storagemock.ConversationRepoMock)

	cfg := config.SweeperConfig{
		SLASchedule:   "*/5 * * * *",
		TaskSchedule:  "*/10 * * * *",
		PoolSize:      1,
		SubmitTimeout: 20 * time.Millisecond,
	}
	s := New(service, businessRepo, conversationRepo, cfg, config.EngineConfig{SLAWindow: 4 * time.Hour})
	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(true))
	require.NoError(t, err)
	s.pool = pool
	t.Cleanup(pool.Release)

	now := time.Now()
	businessRepo.On("FindAllActive", mock.Anything).Return([]model.Business{
		*model.NewBusiness(&model.Business{ID: "biz-1"}),
	}, nil)
	conversationRepo.On("FindBreachCandidates", mock.Anything, mock.Anything, candidateBatchSize).Return([]model.Conversation{
		*model.NewConversation(&model.Conversation{ID: "conv-1", BusinessID: "biz-1"}),
		*model.NewConversation(&model.Conversation{ID: "conv-2", BusinessID: "biz-1"}),
	}, nil).Once()

	// The only worker stays busy on conv-1 until released, so conv-2's submit
	// times out and the task is abandoned.
	release := make(chan struct{})
	var finished atomic.Bool
	service.On("CheckSlaBreach", mock.Anything, "conv-1", mock.Anything, now).Run(func(mock.Arguments) {
		<-release
		finished.Store(true)
	}).Return(false, nil)

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()

	s.RunSlaSweep(context.Background(), now)

	// The sweep must not return, and so hand the pool back to its owner, while
	// a submitted check is still in flight.
	assert.True(t, finished.Load())
	service.AssertNotCalled(t, "CheckSlaBreach", mock.Anything, "conv-2", mock.Anything, mock.Anything)
}

func TestRunTaskSweep_SweepsEveryActiveBusiness(t *testing.T) {
	s, service, businessRepo, _ := newTestSweeper(t)
	now := time.Now()

	businessRepo.On("FindAllActive", mock.Anything).Return([]model.Business{
		*model.NewBusiness(&model.Business{ID: "biz-1"}),
		*model.NewBusiness(&model.Business{ID: "biz-2"}),
	}, nil)

	matcherFor := func(businessID string) interface{} {
		return mock.MatchedBy(func(ctx context.Context) bool {
			got, err := tenant.FromContext(ctx)
			return err == nil && got == businessID
		})
	}
	service.On("SweepOverdue", matcherFor("biz-1"), now).Return(3, nil)
	service.On("SweepOverdue", matcherFor("biz-2"), now).Return(0, nil)

	s.RunTaskSweep(context.Background(), now)

	service.AssertExpectations(t)
}

func TestRunTaskSweep_FailureOnOneTenantContinues(t *testing.T) {
	s, service, businessRepo, _ := newTestSweeper(t)
	now := time.Now()

	businessRepo.On("FindAllActive", mock.Anything).Return([]model.Business{
		*model.NewBusiness(&model.Business{ID: "biz-1"}),
		*model.NewBusiness(&model.Business{ID: "biz-2"}),
	}, nil)

	service.On("SweepOverdue", mock.Anything, now).Return(0, assert.AnError).Once()
	service.On("SweepOverdue", mock.Anything, now).Return(2, nil).Once()

	s.RunTaskSweep(context.Background(), now)

	service.AssertNumberOfCalls(t, "SweepOverdue", 2)
}

func TestStartStop(t *testing.T) {
	logger.Log = zaptest.NewLogger(t).Named("test")

	service := new(LifecycleServiceMock)
	businessRepo := new(storagemock.BusinessRepoMock)
	conversationRepo := new(storagemock.ConversationRepoMock)

	s := New(service, businessRepo, conversationRepo, config.SweeperConfig{
		SLASchedule:   "*/5 * * * *",
		TaskSchedule:  "*/10 * * * *",
		PoolSize:      2,
		SubmitTimeout: time.Second,
	}, config.EngineConfig{SLAWindow: time.Hour})

	require.NoError(t, s.Start())
	s.Stop()
}
