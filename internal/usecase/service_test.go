package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/config"
	storagemock "gitlab.com/timkado/api/daisi-crm-engine/internal/storage/mock"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/tenant"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
)

func init() {
	// Initialize logger for tests
	// zaptest.NewLogger needs a *testing.T, which does not exist in init();
	// a nop logger avoids the nil-TB panic without any test asserting on logs.
	logger.Log = zap.NewNop().Named("test")
}

const testBusinessID = "biz-test-123"

// serviceMocks bundles one mock per repository so tests can set expectations
// on exactly the repos an operation touches.
type serviceMocks struct {
	tx           *storagemock.TxMock
	lead         *storagemock.LeadRepoMock
	customer     *storagemock.CustomerRepoMock
	conversation *storagemock.ConversationRepoMock
	interaction  *storagemock.InteractionRepoMock
	task         *storagemock.TaskRepoMock
	agent        *storagemock.AgentRepoMock
	attribution  *storagemock.AttributionRepoMock
	audit        *storagemock.AuditRepoMock
	business     *storagemock.BusinessRepoMock
	user         *storagemock.UserRepoMock
}

func defaultEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		SLAWindow:          4 * time.Hour,
		DefaultPhoneRegion: "US",
	}
}

func newTestService(cfg config.EngineConfig) (*CrmService, *serviceMocks) {
	m := &serviceMocks{
		tx:           new(storagemock.TxMock),
		lead:         new(storagemock.LeadRepoMock),
		customer:     new(storagemock.CustomerRepoMock),
		conversation: new(storagemock.ConversationRepoMock),
		interaction:  new(storagemock.InteractionRepoMock),
		task:         new(storagemock.TaskRepoMock),
		agent:        new(storagemock.AgentRepoMock),
		attribution:  new(storagemock.AttributionRepoMock),
		audit:        new(storagemock.AuditRepoMock),
		business:     new(storagemock.BusinessRepoMock),
		user:         new(storagemock.UserRepoMock),
	}
	service := NewCrmService(
		m.tx, m.lead, m.customer, m.conversation, m.interaction, m.task,
		m.agent, m.attribution, m.audit, m.business, m.user, cfg,
	)
	return service, m
}

func testContext() context.Context {
	return tenant.WithBusinessID(context.Background(), testBusinessID)
}
