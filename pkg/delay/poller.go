package delay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

const (
	DefaultPollSpec     = "@every 1s"
	DefaultRecoverySpec = "@every 1m"
	DefaultBatchSize    = 100
	DefaultClaimLease   = 5 * time.Minute
)

// Resumer continues a conversation at a fired resumption. It must be
// idempotent: a resumption may be delivered again after a crash.
type Resumer interface {
	Resume(ctx context.Context, resumption *models.DelayedResumption) error
}

type PollerConfig struct {
	PollSpec     string
	RecoverySpec string
	BatchSize    int
	ClaimLease   time.Duration
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		PollSpec:     DefaultPollSpec,
		RecoverySpec: DefaultRecoverySpec,
		BatchSize:    DefaultBatchSize,
		ClaimLease:   DefaultClaimLease,
	}
}

// Poller claims due resumptions and hands them to the Resumer. Claimed
// resumptions that are never marked fired return to the queue after the
// claim lease, at startup and on every recovery run.
type Poller struct {
	repo    persistence.DelayRepository
	resumer Resumer
	clock   clockwork.Clock
	logger  *slog.Logger
	config  PollerConfig

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPoller(
	logger *slog.Logger,
	repo persistence.DelayRepository,
	resumer Resumer,
	clock clockwork.Clock,
	config PollerConfig,
) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	defaults := DefaultPollerConfig()

	if config.PollSpec == "" {
		config.PollSpec = defaults.PollSpec
	}

	if config.RecoverySpec == "" {
		config.RecoverySpec = defaults.RecoverySpec
	}

	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	if config.ClaimLease <= 0 {
		config.ClaimLease = defaults.ClaimLease
	}

	return &Poller{
		repo:    repo,
		resumer: resumer,
		clock:   clock,
		logger:  logger.With("module", "delay_poller"),
		config:  config,
	}
}

// Start recovers stale claims, then runs the poll and recovery jobs until Stop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.InfoContext(ctx, "Starting delay poller", "poll", p.config.PollSpec, "recovery", p.config.RecoverySpec)

	p.ctx, p.cancel = context.WithCancel(ctx)

	_, err := p.Recover(p.ctx)
	if err != nil {
		return fmt.Errorf("failed to recover delayed resumptions: %w", err)
	}

	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err = p.cron.AddFunc(p.config.PollSpec, func() {
		_, err := p.Poll(p.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.ErrorContext(p.ctx, "Delay poll failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid poll spec %q: %w", p.config.PollSpec, err)
	}

	_, err = p.cron.AddFunc(p.config.RecoverySpec, func() {
		_, err := p.Recover(p.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.ErrorContext(p.ctx, "Delay recovery failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid recovery spec %q: %w", p.config.RecoverySpec, err)
	}

	p.cron.Start()

	return nil
}

// Stop halts the jobs and waits for a running poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	if p.cron != nil {
		<-p.cron.Stop().Done()
		p.cron = nil
	}

	p.logger.Info("Stopped delay poller")
}

// Recover returns claims older than the lease to the scheduled state.
func (p *Poller) Recover(ctx context.Context) (int, error) {
	released, err := p.repo.ReleaseExpiredClaims(ctx, p.clock.Now().UTC(), p.config.ClaimLease)
	if err != nil {
		return 0, err
	}

	if released > 0 {
		p.logger.WarnContext(ctx, "Released expired delay claims", "count", released)
	}

	return released, nil
}

// Poll claims the due resumptions and resumes them one by one. It returns the
// number of resumptions marked fired.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	now := p.clock.Now().UTC()

	claimed, err := p.repo.ClaimDue(ctx, now, p.config.BatchSize)
	if err != nil {
		return 0, err
	}

	fired := 0

	for _, resumption := range claimed {
		if ctx.Err() != nil {
			return fired, ctx.Err()
		}

		logger := p.logger.With(
			"conversation_id", resumption.ConversationID,
			"flow_id", resumption.FlowID,
			"node_id", resumption.NodeID,
			"delay_id", resumption.ID,
		)

		err := p.resumer.Resume(ctx, resumption)
		if err != nil {
			// Left claimed; recovery hands it out again after the lease.
			logger.ErrorContext(ctx, "Failed to resume delayed conversation", "error", err)

			continue
		}

		err = p.repo.MarkFired(ctx, resumption.ID, p.clock.Now().UTC())
		if err != nil {
			logger.ErrorContext(ctx, "Failed to mark delay fired", "error", err)

			continue
		}

		fired++
	}

	return fired, nil
}
