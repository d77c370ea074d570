package listener

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"autoquote/internal"
	"autoquote/internal/catalog"
	"autoquote/internal/config"
	"autoquote/internal/connectors"
	"autoquote/internal/lock"
	"autoquote/internal/pipeline"
	"autoquote/internal/storage"
)

// ErrSweepRunning is returned when a sweep is requested while one is active.
var ErrSweepRunning = errors.New("sweep already running")

const lastSweepKey = "last_sweep_at"

type Store interface {
	catalog.Source
	ListActiveMailAccounts(ctx context.Context) ([]internal.MailAccount, error)
	HasProcessedEmail(ctx context.Context, accountID int64, messageID string) (bool, error)
	TouchMailAccount(ctx context.Context, id int64) error
	InsertRun(ctx context.Context, traceID string, timings map[string]float64, counts map[string]int, detail any) error
	SetMetadata(ctx context.Context, key, value string) error
}

type Processor interface {
	ProcessMessage(ctx context.Context, account internal.MailAccount, snap *catalog.Snapshot, msg internal.RawMessage) (pipeline.Outcome, error)
}

type Service struct {
	store     Store
	mailboxes connectors.Mailbox
	processor Processor
	locker    lock.Locker

	budget   time.Duration
	lockTTL  time.Duration
	schedule string
	dropDir  string

	running atomic.Int32
	now     func() time.Time
}

func NewService(cfg config.Config, store Store, mailboxes connectors.Mailbox, processor Processor, locker lock.Locker) *Service {
	return &Service{
		store:     store,
		mailboxes: mailboxes,
		processor: processor,
		locker:    locker,
		budget:    cfg.SweepBudget,
		lockTTL:   cfg.SweepLockTTL,
		schedule:  cfg.SweepSchedule,
		dropDir:   cfg.MaildropDir,
		now:       time.Now,
	}
}

type AccountSummary struct {
	Account   string `json:"account"`
	Status    string `json:"status"`
	Fetched   int    `json:"fetched"`
	Processed int    `json:"processed"`
	AutoSent  int    `json:"autoSent"`
	Flagged   int    `json:"flagged"`
	Errors    int    `json:"errors"`
	Ignored   int    `json:"ignored"`
	Skipped   int    `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

// Summary reports one sweep. Processed counts messages that reached a
// terminal record; ignored and skipped messages are counted separately.
type Summary struct {
	TraceID        string           `json:"traceId"`
	Trigger        string           `json:"trigger"`
	StartedAt      time.Time        `json:"timestamp"`
	DurationMS     int64            `json:"durationMs"`
	TotalProcessed int              `json:"totalProcessed"`
	BudgetExceeded bool             `json:"budgetExceeded"`
	Accounts       []AccountSummary `json:"accounts"`
}

func (s Summary) counts() map[string]int {
	out := map[string]int{"accounts": len(s.Accounts)}
	for _, a := range s.Accounts {
		out["fetched"] += a.Fetched
		out["processed"] += a.Processed
		out["auto_sent"] += a.AutoSent
		out["flagged"] += a.Flagged
		out["errors"] += a.Errors
		out["ignored"] += a.Ignored
		out["skipped"] += a.Skipped
	}
	return out
}

// TriggerSweep runs one sweep unless another is in progress.
func (s *Service) TriggerSweep(ctx context.Context, trigger string) (Summary, error) {
	if !s.running.CompareAndSwap(0, 1) {
		return Summary{}, ErrSweepRunning
	}
	defer s.running.Store(0)
	return s.sweep(ctx, trigger)
}

// sweep walks every active account in order within the sweep budget. A
// message that has started is always finished; once the budget is spent no
// further message is started.
func (s *Service) sweep(ctx context.Context, trigger string) (Summary, error) {
	started := s.now()
	summary := Summary{TraceID: uuid.NewString(), Trigger: trigger, StartedAt: started.UTC(), Accounts: []AccountSummary{}}
	logger := log.With().Str("trace_id", summary.TraceID).Str("trigger", trigger).Logger()

	sweepCtx := ctx
	if s.budget > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithDeadline(ctx, started.Add(s.budget))
		defer cancel()
	}

	snap, err := catalog.Load(sweepCtx, s.store)
	if err != nil {
		return summary, fmt.Errorf("load catalog: %w", err)
	}
	accounts, err := s.store.ListActiveMailAccounts(sweepCtx)
	if err != nil {
		return summary, fmt.Errorf("list accounts: %w", err)
	}
	logger.Info().Int("accounts", len(accounts)).Int("products", len(snap.Products)).Int("customers", snap.CustomerCount()).Msg("sweep started")

	for _, account := range accounts {
		if sweepCtx.Err() != nil {
			summary.BudgetExceeded = true
			summary.Accounts = append(summary.Accounts, AccountSummary{Account: account.Email, Status: "skipped", Error: "sweep budget exhausted"})
			continue
		}
		as, exceeded := s.sweepAccount(sweepCtx, logger, account, snap)
		summary.Accounts = append(summary.Accounts, as)
		summary.TotalProcessed += as.Processed
		if exceeded {
			summary.BudgetExceeded = true
		}
	}

	summary.DurationMS = s.now().Sub(started).Milliseconds()
	s.persist(context.WithoutCancel(ctx), logger, summary)
	logger.Info().Int("processed", summary.TotalProcessed).Int64("duration_ms", summary.DurationMS).
		Bool("budget_exceeded", summary.BudgetExceeded).Msg("sweep finished")
	return summary, nil
}

func (s *Service) sweepAccount(ctx context.Context, parent zerolog.Logger, account internal.MailAccount, snap *catalog.Snapshot) (AccountSummary, bool) {
	as := AccountSummary{Account: account.Email, Status: "success"}
	logger := parent.With().Str("account", account.Email).Logger()

	release, err := s.locker.Acquire(ctx, "account:"+strconv.FormatInt(account.ID, 10), s.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			logger.Info().Msg("account locked by another sweep, skipping")
			as.Status = "locked"
			return as, false
		}
		logger.Error().Err(err).Msg("account lock failed")
		as.Status, as.Error = "error", err.Error()
		return as, false
	}
	defer release()

	sess, err := s.mailboxes.Open(ctx, account)
	if err != nil {
		logger.Error().Err(err).Msg("mailbox connect failed")
		as.Status, as.Error = "error", err.Error()
		return as, ctx.Err() != nil
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Debug().Err(err).Msg("mailbox close failed")
		}
	}()

	messages, err := sess.Fetch(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("mailbox fetch failed")
		as.Status, as.Error = "error", err.Error()
		return as, ctx.Err() != nil
	}
	as.Fetched = len(messages)
	if err := s.store.TouchMailAccount(ctx, account.ID); err != nil {
		logger.Warn().Err(err).Msg("could not record account check time")
	}

	// in-flight work runs to completion even if the budget expires mid-message
	work := context.WithoutCancel(ctx)
	for _, msg := range messages {
		if ctx.Err() != nil {
			logger.Warn().Int("remaining", as.Fetched-as.Processed-as.Ignored-as.Skipped-as.Errors).Msg("sweep budget exhausted")
			return as, true
		}
		mlog := logger.With().Str("message_id", msg.MessageID).Logger()

		seen, err := s.store.HasProcessedEmail(work, account.ID, msg.MessageID)
		if err != nil {
			mlog.Error().Err(err).Msg("processed lookup failed")
			as.Errors++
			continue
		}
		if seen {
			as.Skipped++
			s.markSeen(work, sess, mlog, msg)
			continue
		}

		out, err := s.processor.ProcessMessage(work, account, snap, msg)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				as.Skipped++
				s.markSeen(work, sess, mlog, msg)
				continue
			}
			mlog.Error().Err(err).Msg("message not recorded")
			as.Errors++
			continue
		}

		switch {
		case out.Ignored:
			as.Ignored++
		case out.Status == internal.StatusAutoSent:
			as.Processed++
			as.AutoSent++
		case out.Status == internal.StatusFlagged:
			as.Processed++
			as.Flagged++
		default:
			as.Processed++
			as.Errors++
		}
		s.markSeen(work, sess, mlog, msg)
	}
	return as, false
}

func (s *Service) markSeen(ctx context.Context, sess connectors.Session, logger zerolog.Logger, msg internal.RawMessage) {
	if msg.Ref == "" {
		return
	}
	if err := sess.MarkSeen(ctx, msg.Ref); err != nil {
		logger.Warn().Err(err).Msg("could not mark message seen")
	}
}

func (s *Service) persist(ctx context.Context, logger zerolog.Logger, summary Summary) {
	timings := map[string]float64{"total_ms": float64(summary.DurationMS)}
	if err := s.store.InsertRun(ctx, summary.TraceID, timings, summary.counts(), summary); err != nil {
		logger.Warn().Err(err).Msg("could not persist sweep summary")
	}
	if err := s.store.SetMetadata(ctx, lastSweepKey, summary.StartedAt.Format(time.RFC3339)); err != nil {
		logger.Warn().Err(err).Msg("could not record sweep time")
	}
}
