package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/daisi-crm-engine/internal/apperrors"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/config"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/jetstream"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/model"
	"gitlab.com/timkado/api/daisi-crm-engine/internal/storage"
	"gitlab.com/timkado/api/daisi-crm-engine/pkg/logger"
)

// AckNakAction represents the decision made after processing a message
type AckNakAction int

const (
	ActionAck      AckNakAction = iota // Message processed successfully, ACK it
	ActionNak                          // Terminal failure before routing, NAK immediately
	ActionNakDelay                     // Retryable error, NAK with calculated delay
	ActionPark                         // Max retries reached or fatal error, park as dead event then ACK
)

// determineAckNakAction decides the fate of a message based on the processing
// result and delivery metadata. It returns the action to take and the NAK
// delay when applicable.
func determineAckNakAction(
	processingErr error,
	metadata *nats.MsgMetadata,
	maxDeliver int,
	nakBaseDelay time.Duration,
	nakMaxDelay time.Duration,
) (action AckNakAction, delay time.Duration) {

	if processingErr == nil {
		return ActionAck, 0
	}

	isRetryable := apperrors.IsRetryable(processingErr)
	numDelivered := metadata.NumDelivered

	// Exhausted deliveries or a fatal error both park the message; redelivery
	// would only replay the same failure.
	if numDelivered >= uint64(maxDeliver) || !isRetryable {
		return ActionPark, 0
	}

	// Retryable with attempts remaining: NAK with exponential delay.
	attempt := numDelivered
	delay = nakBaseDelay
	if attempt > 1 {
		delay = nakBaseDelay * (1 << (attempt - 1))
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// IntakeConsumer consumes the intake stream for all tenants. Subjects carry a
// trailing business ID segment; the stream subscribes the wildcard and the
// router scopes each message to its tenant.
type IntakeConsumer struct {
	client        jetstream.ClientInterface
	router        *Router
	deadEventRepo storage.DeadEventRepo
	cfg           config.ConsumerNatsConfig
	ctx           context.Context
	cancel        context.CancelFunc
	sub           *nats.Subscription
	filterSubject string
}

// NewIntakeConsumer creates a consumer for the intake stream
func NewIntakeConsumer(client jetstream.ClientInterface, router *Router, deadEventRepo storage.DeadEventRepo, cfg config.ConsumerNatsConfig) *IntakeConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithLogger(ctx, logger.Log.With(zap.String("consumer", cfg.Consumer)))

	return &IntakeConsumer{
		client:        client,
		router:        router,
		deadEventRepo: deadEventRepo,
		cfg:           cfg,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// streamSubjects appends the business ID wildcard to each base subject.
func streamSubjects(subjects []string) []string {
	wildcards := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		wildcards = append(wildcards, fmt.Sprintf("%s.*", subject))
	}
	return wildcards
}

// Setup configures the NATS stream and consumer for intake events
func (c *IntakeConsumer) Setup() error {
	log := logger.FromContext(c.ctx)
	log.Info("Setting up IntakeConsumer...", zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))

	maxAgeRetention := time.Duration(c.cfg.MaxAge*24) * time.Hour
	subjects := streamSubjects(c.cfg.SubjectList)

	streamCfg := &nats.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAgeRetention,
	}
	if err := c.client.SetupStream(c.ctx, streamCfg); err != nil {
		log.Error("Failed to setup intake stream", zap.Error(err), zap.String("stream", c.cfg.Stream))
		return fmt.Errorf("failed to setup intake stream '%s': %w", c.cfg.Stream, err)
	}

	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.QueueGroup,
		FilterSubjects: subjects,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverSubject: nats.NewInbox(),
		MaxDeliver:     c.cfg.MaxDeliver,
		AckWait:        30 * time.Second,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
		DeliverPolicy:  nats.DeliverAllPolicy,
	}
	c.filterSubject = "v1.crm.>"

	if err := c.client.SetupConsumer(c.ctx, c.cfg.Stream, consumerCfg); err != nil {
		log.Error("Failed to setup intake consumer", zap.Error(err), zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))
		return fmt.Errorf("failed to setup intake consumer '%s' for stream '%s': %w", c.cfg.Consumer, c.cfg.Stream, err)
	}

	log.Info("IntakeConsumer setup complete")
	return nil
}

// Start subscribes to the NATS stream
func (c *IntakeConsumer) Start() error {
	log := logger.FromContext(c.ctx)
	log.Info("Starting IntakeConsumer subscription...", zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))

	sub, err := c.client.SubscribePush(c.filterSubject, c.cfg.Consumer, c.cfg.QueueGroup, c.cfg.Stream, c.handleMessage)
	if err != nil {
		log.Error("Failed to subscribe intake consumer", zap.Error(err),
			zap.String("stream", c.cfg.Stream),
			zap.String("consumer", c.cfg.Consumer),
			zap.String("group", c.cfg.QueueGroup),
		)
		return fmt.Errorf("failed to subscribe intake consumer '%s': %w", c.cfg.Consumer, err)
	}
	c.sub = sub
	log.Info("IntakeConsumer subscribed successfully")
	return nil
}

// Stop unsubscribes and cleans up resources
func (c *IntakeConsumer) Stop() {
	log := logger.FromContext(c.ctx)
	log.Info("Stopping IntakeConsumer...", zap.String("stream", c.cfg.Stream), zap.String("consumer", c.cfg.Consumer))
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Failed to drain intake subscription", zap.Error(err))
		}
		c.sub = nil
	}
	c.cancel()
}

// handleMessage routes one intake message and settles it according to the
// processing outcome.
func (c *IntakeConsumer) handleMessage(msg *nats.Msg) {
	startTime := time.Now()
	msgCtx := c.ctx
	log := logger.FromContext(msgCtx)

	defer func() {
		if r := recover(); r != nil {
			log.Error("[panic] Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.String("subject", msg.Subject),
				zap.Duration("duration", time.Since(startTime)),
				zap.Stack("stack"),
			)
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	var msgID string
	if msg.Header != nil {
		msgID = msg.Header.Get("Nats-Msg-Id")
	}

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err))
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		return
	}
	if msgID == "" {
		msgID = fmt.Sprintf("msg-%d", metadata.Sequence.Stream)
	}

	internalMetadata := &model.MessageMetadata{
		StreamSequence:   metadata.Sequence.Stream,
		ConsumerSequence: metadata.Sequence.Consumer,
		NumDelivered:     metadata.NumDelivered,
		NumPending:       metadata.NumPending,
		Timestamp:        metadata.Timestamp,
		Stream:           metadata.Stream,
		Consumer:         metadata.Consumer,
		MessageID:        msgID,
		MessageSubject:   msg.Subject,
		BusinessID:       model.BusinessIDFromSubject(msg.Subject),
	}

	msgCtx = logger.WithLogger(msgCtx, log.With(
		zap.String("nats_message_id", msgID),
		zap.Uint64("stream_sequence", internalMetadata.StreamSequence),
		zap.String("subject", msg.Subject),
	))

	processingErr := c.router.Route(msgCtx, internalMetadata, msg.Data)

	enhancedLog := logger.FromContext(msgCtx)
	action, nakDelay := determineAckNakAction(processingErr, metadata, c.cfg.MaxDeliver, c.cfg.NakBaseDelay, c.cfg.NakMaxDelay)

	switch action {
	case ActionAck:
		enhancedLog.Info("Successfully processed message", zap.Duration("duration", time.Since(startTime)))
		if ackErr := msg.Ack(); ackErr != nil {
			enhancedLog.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case ActionNak:
		enhancedLog.Error("NAKing message immediately", zap.Error(processingErr))
		if nakErr := msg.Nak(); nakErr != nil {
			enhancedLog.Error("Failed to NAK message", zap.Error(nakErr))
		}

	case ActionNakDelay:
		enhancedLog.Info("NAKing message with delay for redelivery (retryable error)",
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
			zap.Duration("nak_delay", nakDelay),
		)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			enhancedLog.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case ActionPark:
		c.parkMessage(msgCtx, msg, internalMetadata, processingErr)
	}
}

// parkMessage stores an unprocessable message as a dead event for manual
// inspection and replay, then ACKs the original so it stops redelivering.
// When the park itself fails the message is NAKed to try again later.
func (c *IntakeConsumer) parkMessage(ctx context.Context, msg *nats.Msg, metadata *model.MessageMetadata, processingErr error) {
	log := logger.FromContext(ctx)

	reason := "max delivery attempts reached"
	if !apperrors.IsRetryable(processingErr) {
		reason = "fatal error encountered"
	}
	log.Warn(fmt.Sprintf("Parking message as dead event: %s", reason),
		zap.Error(processingErr),
		zap.Uint64("num_delivered", metadata.NumDelivered),
		zap.Int("max_deliver", c.cfg.MaxDeliver),
	)

	deadEvent := model.DeadEvent{
		BusinessID:     metadata.BusinessID,
		SourceSubject:  msg.Subject,
		LastError:      processingErr.Error(),
		DeliveryCount:  int(metadata.NumDelivered),
		EventTimestamp: metadata.Timestamp,
		Payload:        datatypes.JSON(msg.Data),
	}
	if err := c.deadEventRepo.Save(ctx, deadEvent); err != nil {
		log.Error("Failed to park dead event, NAKing original message", zap.Error(err))
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message after park failure", zap.Error(nakErr))
		}
		return
	}

	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message after parking dead event", zap.Error(ackErr))
	}
}
