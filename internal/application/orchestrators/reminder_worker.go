package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fitclub/internal/adapters/email"
	"fitclub/internal/domain/account"
	"fitclub/internal/domain/notification"
)

const workerDateLayout = "2006-01-02T15:04:05.999999999Z07:00"

// NotificationStoreForWorker defines the notification store interface for
// the delivery worker.
type NotificationStoreForWorker interface {
	Save(ctx context.Context, n notification.Notification) error
	ListDue(ctx context.Context, now string, limit int) ([]notification.Notification, error)
}

// AccountStoreForWorker defines the account lookup for the delivery worker.
type AccountStoreForWorker interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// ReminderProcessor delivers due notifications by email with retries.
type ReminderProcessor struct {
	store     NotificationStoreForWorker
	accounts  AccountStoreForWorker
	sender    email.Sender
	baseDelay time.Duration
	maxDelay  time.Duration
	batchSize int
}

// NewReminderProcessor creates a processor with default retry tuning.
func NewReminderProcessor(store NotificationStoreForWorker, accounts AccountStoreForWorker, sender email.Sender) *ReminderProcessor {
	return &ReminderProcessor{
		store:     store,
		accounts:  accounts,
		sender:    sender,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		batchSize: 25,
	}
}

// ProcessDue delivers every due notification in one batch.
// PRE: Context is valid
// POST: Each due notification is sent or rescheduled with backoff
func (p *ReminderProcessor) ProcessDue(ctx context.Context) error {
	due, err := p.store.ListDue(ctx, time.Now().Format(workerDateLayout), p.batchSize)
	if err != nil {
		return fmt.Errorf("list due notifications: %w", err)
	}

	for _, n := range due {
		if err := p.processOne(ctx, n); err != nil {
			slog.Error("notification_process_failed", "notification_id", n.ID, "error", err.Error())
		}
	}
	return nil
}

// processOne attempts delivery of a single notification.
func (p *ReminderProcessor) processOne(ctx context.Context, n notification.Notification) error {
	a, err := p.accounts.GetByID(ctx, n.AccountID)
	if err != nil {
		n.MarkAttempt(time.Now())
		n.MarkFailed(fmt.Errorf("load account: %w", err))
		return p.store.Save(ctx, n)
	}

	now := time.Now()
	n.MarkAttempt(now)

	_, err = p.sender.Send(ctx, email.SendRequest{
		To:      []string{a.Email},
		Subject: n.Title,
		HTML:    fmt.Sprintf("<p>%s</p>", n.Body),
	})
	if err != nil {
		n.MarkFailed(err)
		if !n.IsTerminal() {
			// Push the next attempt out with exponential backoff.
			n.ScheduledFor = now.Add(n.NextRetryDelay(p.baseDelay, p.maxDelay))
		}
		slog.Warn("notification_send_failed",
			"notification_id", n.ID, "attempt", n.Attempts, "error", err.Error())
	} else {
		n.MarkSent(now)
		slog.Info("notification_sent",
			"notification_id", n.ID, "kind", n.Kind, "account_id", n.AccountID)
	}

	return p.store.Save(ctx, n)
}

// Start runs the processor on a fixed interval until stopCh closes.
// POST: A worker goroutine polls for due notifications
func (p *ReminderProcessor) Start(interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.ProcessDue(context.Background()); err != nil {
					slog.Error("notification_worker_error", "error", err.Error())
				}
			case <-stopCh:
				slog.Info("notification_worker_stopped")
				return
			}
		}
	}()
}
