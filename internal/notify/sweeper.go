// Package notify delivers due notifications on a fixed interval.
package notify

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nhle/dojobot/internal/apperr"
	"github.com/nhle/dojobot/internal/chat"
	"github.com/nhle/dojobot/internal/keylock"
	"github.com/nhle/dojobot/internal/logging"
	"github.com/nhle/dojobot/internal/model"
	"github.com/nhle/dojobot/internal/store"
)

// sendTimeout is the maximum time allowed for a single delivery.
const sendTimeout = 30 * time.Second

// Sweeper finds notifications whose fire time has passed, removes them from
// the store and hands them to the messenger. A notification is deleted
// before it is sent, so a sweep never delivers the same row twice and a
// failed delivery is dropped.
type Sweeper struct {
	store     store.Store
	messenger chat.Messenger
	locks     *keylock.Map
	now       func() time.Time
	log       logrus.FieldLogger

	// sweeping is held for the duration of one sweep.
	sweeping gosync.Mutex

	mu      gosync.Mutex
	cron    *cron.Cron
	running bool
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Sweeper) { s.log = logging.Component(log, "sweep") }
}

// New creates a Sweeper. locks must be the map shared with the scheduling
// engine so retraction and delivery exclude each other.
func New(s store.Store, m chat.Messenger, locks *keylock.Map, opts ...Option) *Sweeper {
	sw := &Sweeper{
		store:     s,
		messenger: m,
		locks:     locks,
		now:       time.Now,
		log:       logging.Component(logging.Discard(), "sweep"),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// Start runs SweepOnce every interval until Stop is called. A tick that
// arrives while the previous sweep is still running is skipped.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return apperr.Validation("interval", "sweep interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(
		cron.WithLogger(cron.PrintfLogger(s.log)),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.log))),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if _, err := s.SweepOnce(ctx); err != nil {
			logging.LogError(s.log, "sweep_failed", err, nil)
		}
	}); err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.WithField("interval", interval.String()).Info("notification sweep started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// SweepOnce delivers every notification due at the current instant and
// reports how many were handed to the messenger. It returns immediately
// with zero when another sweep is in progress.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if !s.sweeping.TryLock() {
		return 0, nil
	}
	defer s.sweeping.Unlock()

	due, err := s.store.GetDueNotifications(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("loading due notifications: %w", err)
	}

	delivered := 0
	for _, n := range due {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		claimed, err := s.claim(ctx, n)
		if err != nil {
			logging.LogError(s.log, "notification_claim_failed", err, logrus.Fields{
				"notification_id": n.ID,
			})
			continue
		}
		if !claimed {
			continue
		}

		if s.deliver(ctx, n) {
			delivered++
		}
	}
	return delivered, nil
}

// claim removes n from the store. It reports false when the row was
// already removed, which happens when its reminder was turned off.
func (s *Sweeper) claim(ctx context.Context, n model.Notification) (bool, error) {
	if n.MeetingID != nil {
		unlock := s.locks.Lock(keylock.ReminderKey(*n.MeetingID, n.ChatID))
		defer unlock()
	}

	err := s.store.DeleteNotification(ctx, n.ID)
	switch {
	case apperr.IsNotFound(err):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (s *Sweeper) deliver(ctx context.Context, n model.Notification) bool {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	fields := logrus.Fields{"notification_id": n.ID, "chat_id": n.ChatID}

	if _, err := s.messenger.SendText(sendCtx, n.ChatID, n.Text, chat.SendOptions{HTML: true}); err != nil {
		logging.LogError(s.log, "notification_send_failed", err, fields)
		return false
	}
	if n.DocRef != "" {
		if err := s.messenger.SendDocument(sendCtx, n.ChatID, n.DocRef, n.DocCaption); err != nil {
			logging.LogError(s.log, "notification_document_failed", err, fields)
		}
	}

	logging.LogEvent(s.log, "notification_delivered", fields)
	return true
}
