package notification

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/headstart-tech/admissions-api/internal/cache"
	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/repository"
	"github.com/headstart-tech/admissions-api/internal/tenant"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
	"github.com/headstart-tech/admissions-api/pkg/messaging"
	"github.com/headstart-tech/admissions-api/pkg/metrics"
)

const (
	minListTTL    = 300 * time.Second
	listTTLJitter = 300
)

// Pusher is the subset of the cache client the service needs.
type Pusher interface {
	AppendWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration, maxLen int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

type Config struct {
	// MaxPushRetries bounds the retries after a lost optimistic-lock race.
	MaxPushRetries  int
	RetryBaseDelay  time.Duration
	BulkConcurrency int
	// MaxListLength caps each recipient's cached list; zero keeps everything.
	MaxListLength   int64
}

// Service persists notification events and pushes them to the recipient's cached
// list, then broadcasts that the list changed. Only persistence is required to
// succeed; cache and broadcast failures are logged and counted.
type Service struct {
	repo     repository.NotificationRepository
	students repository.StudentRepository
	cache    Pusher
	broker   messaging.Broker
	cfg      Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	listTTL  func() time.Duration
}

func NewService(
	repo repository.NotificationRepository,
	students repository.StudentRepository,
	c Pusher,
	broker messaging.Broker,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 5 * time.Millisecond
	}
	if cfg.BulkConcurrency < 1 {
		cfg.BulkConcurrency = 1
	}
	return &Service{
		repo:     repo,
		students: students,
		cache:    c,
		broker:   broker,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		now:      time.Now,
		listTTL:  randomListTTL,
	}
}

// randomListTTL spreads list expiry between five and ten minutes.
func randomListTTL() time.Duration {
	return minListTTL + time.Duration(rand.Intn(listTTLJitter+1))*time.Second
}

// Build turns a business event into a notification record. It reports false when
// the kind is unknown, the subject cannot be loaded or nobody would receive it.
func (s *Service) Build(ctx context.Context, in model.EventInput) (*model.NotificationEvent, bool) {
	e, ok := catalog[in.Kind]
	if !ok {
		s.logger.Debug("ignoring unknown notification kind", "kind", in.Kind.String())
		return nil, false
	}

	var subj subject
	if e.needsStudent {
		st, err := s.students.GetStudent(ctx, in.StudentID)
		if err != nil {
			s.logger.Warn(err, "notification subject not loaded", "kind", in.Kind.String(), "student_id", in.StudentID)
			return nil, false
		}
		subj.student = st
	}
	if in.ApplicationID != "" {
		app, err := s.students.GetApplication(ctx, in.ApplicationID)
		if err != nil {
			s.logger.Warn(err, "notification application not loaded", "application_id", in.ApplicationID)
		} else {
			subj.application = app
		}
	}

	now := s.now().UTC()
	d := e.build(in, subj, now)
	if in.RecipientOverride != "" {
		d.sendTo = in.RecipientOverride
	}
	if d.sendTo == "" {
		s.logger.Debug("notification has no recipient", "kind", in.Kind.String(), "student_id", in.StudentID)
		return nil, false
	}

	return &model.NotificationEvent{
		EventType:     d.eventType,
		SendTo:        d.sendTo,
		StudentID:     in.StudentID,
		ApplicationID: in.ApplicationID,
		Message:       d.message,
		EventDateTime: d.at,
		CreatedAt:     now,
	}, true
}

// WriteAndPublish builds, persists and publishes one event. Nothing is returned:
// every failure is logged and the triggering action carries on.
func (s *Service) WriteAndPublish(ctx context.Context, in model.EventInput) {
	ks, err := keyspace(ctx)
	if err != nil {
		s.logger.Error(err, "notification dropped", "kind", in.Kind.String())
		return
	}

	event, ok := s.Build(ctx, in)
	if !ok {
		return
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to persist notification", "event_type", string(event.EventType), "send_to", event.SendTo)
		return
	}
	if s.metrics != nil {
		s.metrics.NotificationsWritten.WithLabelValues(string(event.EventType)).Inc()
	}

	s.publish(ctx, ks, event)
}

// Broadcast writes one event per recipient, each addressed through the recipient
// override, then publishes the persisted ones together. It returns how many were
// persisted.
func (s *Service) Broadcast(ctx context.Context, in model.EventInput, recipients []string) int {
	events := make([]*model.NotificationEvent, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		if _, dup := seen[r]; dup || r == "" {
			continue
		}
		seen[r] = struct{}{}

		one := in
		one.RecipientOverride = r
		event, ok := s.Build(ctx, one)
		if !ok {
			continue
		}
		if err := s.repo.Create(ctx, event); err != nil {
			s.logger.Error(err, "failed to persist notification", "event_type", string(event.EventType), "send_to", r)
			continue
		}
		if s.metrics != nil {
			s.metrics.NotificationsWritten.WithLabelValues(string(event.EventType)).Inc()
		}
		events = append(events, event)
	}

	s.PublishBulk(ctx, events)
	return len(events)
}

// PublishBulk pushes and broadcasts already persisted events concurrently.
func (s *Service) PublishBulk(ctx context.Context, events []*model.NotificationEvent) {
	ks, err := keyspace(ctx)
	if err != nil {
		s.logger.Error(err, "bulk publish dropped", "count", len(events))
		return
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.BulkConcurrency)
	for _, event := range events {
		event := event
		if event == nil || event.SendTo == "" {
			continue
		}
		g.Go(func() error {
			s.publish(ctx, ks, event)
			return nil
		})
	}
	_ = g.Wait()
}

// Recent returns the newest entries of a recipient's list, oldest first. The cache
// is preferred; an empty or unreadable list falls back to the document store.
func (s *Service) Recent(ctx context.Context, recipient string, limit int64) ([]model.NotificationCacheEntry, error) {
	if recipient == "" {
		return nil, apperrors.BadRequest("recipient is required", nil)
	}
	ks, err := keyspace(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	items, err := s.cache.LRange(ctx, ks.NotificationKey(recipient), -limit, -1)
	if err != nil {
		s.logger.Warn(err, "notification list read failed, using document store", "send_to", recipient)
	}
	if err == nil && len(items) > 0 {
		entries := make([]model.NotificationCacheEntry, 0, len(items))
		for _, item := range items {
			var entry model.NotificationCacheEntry
			if err := json.Unmarshal([]byte(item), &entry); err != nil {
				s.logger.Warn(err, "skipping malformed notification entry", "send_to", recipient)
				continue
			}
			entries = append(entries, entry)
		}
		return entries, nil
	}

	events, err := s.repo.ListRecent(ctx, recipient, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]model.NotificationCacheEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, e.CacheEntry())
	}
	return entries, nil
}

// Subscribe delivers a signal each time the recipient's list is published.
func (s *Service) Subscribe(ctx context.Context, recipient string) (<-chan []byte, error) {
	if recipient == "" {
		return nil, apperrors.BadRequest("recipient is required", nil)
	}
	ks, err := keyspace(ctx)
	if err != nil {
		return nil, err
	}
	return s.broker.Subscribe(ctx, ks.NotificationKey(recipient))
}

func (s *Service) publish(ctx context.Context, ks cache.Keyspace, event *model.NotificationEvent) {
	key := ks.NotificationKey(event.SendTo)
	if err := s.push(ctx, key, event); err != nil {
		s.logger.Warn(err, "notification not cached", "key", key)
	}

	if err := s.broker.PublishFanout(ctx, key, []byte(messaging.DataPublished)); err != nil {
		if s.metrics != nil {
			s.metrics.FanoutFailures.Inc()
		}
		s.logger.Warn(err, "notification broadcast failed", "exchange", key)
	}
}

// push appends the event to the list under an optimistic lock. Only a lost race is
// retried, with exponential backoff, up to MaxPushRetries times.
func (s *Service) push(ctx context.Context, key string, event *model.NotificationEvent) error {
	data, err := json.Marshal(event.CacheEntry())
	if err != nil {
		s.countFailure("encode")
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.RetryBaseDelay
	eb.MaxInterval = 50 * s.cfg.RetryBaseDelay
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.cfg.MaxPushRetries)), ctx)

	attempt := 0
	err = backoff.Retry(func() error {
		if attempt > 0 && s.metrics != nil {
			s.metrics.NotificationPushRetries.Inc()
		}
		attempt++

		err := s.cache.AppendWithTTL(ctx, key, data, s.listTTL(), s.cfg.MaxListLength)
		if err == nil || errors.Is(err, cache.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, b)

	switch {
	case err == nil:
	case errors.Is(err, cache.ErrConflict):
		s.countFailure("conflict")
	case errors.Is(err, cache.ErrTimeout):
		s.countFailure("timeout")
	default:
		s.countFailure("error")
	}
	return err
}

func (s *Service) countFailure(reason string) {
	if s.metrics != nil {
		s.metrics.NotificationPushFailures.WithLabelValues(reason).Inc()
	}
}

func keyspace(ctx context.Context) (cache.Keyspace, error) {
	st, err := tenant.FromContext(ctx)
	if err != nil {
		return cache.Keyspace{}, apperrors.Internal(err)
	}
	return st.Keyspace(), nil
}
