package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"auditflow/internal/directory"
	id "auditflow/pkg/domain"
	"auditflow/pkg/requestcontext"
)

// maxFanOut bounds concurrent per-recipient writes during a capability or
// role broadcast.
const maxFanOut = 8

// Dispatcher is the collaborator interface orchestration services depend on.
// Implementations persist events and push live best-effort; callers treat
// returned errors as log-and-continue.
type Dispatcher interface {
	NotifyUser(ctx context.Context, userID id.UserID, event Event) error
	NotifyUsersWithCapability(ctx context.Context, tenantID id.TenantID, capability string, event Event) error
	NotifyByDefaultRole(ctx context.Context, tenantID id.TenantID, role string, event Event) error
	PushLive(ctx context.Context, channel Channel, eventName string, payload any) error
}

// Store persists notification events.
type Store interface {
	Create(ctx context.Context, event Event) error
}

// LivePublisher pushes a payload to connected recipients on a channel.
// Implementations are best-effort; a nil publisher disables live push.
type LivePublisher interface {
	Publish(ctx context.Context, channel Channel, eventName string, payload any) error
}

// Service is the concrete dispatcher.
type Service struct {
	store     Store
	directory directory.Directory
	live      LivePublisher
	logger    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLivePublisher(live LivePublisher) Option {
	return func(s *Service) { s.live = live }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store Store, dir directory.Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: dir,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyUser persists a single-recipient event and pushes it on the user
// channel.
func (s *Service) NotifyUser(ctx context.Context, userID id.UserID, event Event) error {
	event = s.stamp(ctx, event)
	event.RecipientID = userID
	if err := s.store.Create(ctx, event); err != nil {
		return err
	}
	s.pushBestEffort(ctx, UserChannel(userID), string(event.Type), event)
	return nil
}

// NotifyUsersWithCapability resolves the capability audience and fans out.
// Per-recipient failures are isolated: the remaining recipients are still
// notified and the first error is returned for the caller's log line.
func (s *Service) NotifyUsersWithCapability(ctx context.Context, tenantID id.TenantID, capability string, event Event) error {
	users, err := s.directory.UsersWithCapability(ctx, tenantID, capability)
	if err != nil {
		return err
	}
	return s.fanOut(ctx, users, event)
}

// NotifyByDefaultRole resolves the default-role audience and fans out.
func (s *Service) NotifyByDefaultRole(ctx context.Context, tenantID id.TenantID, role string, event Event) error {
	users, err := s.directory.UsersWithDefaultRole(ctx, tenantID, role)
	if err != nil {
		return err
	}
	return s.fanOut(ctx, users, event)
}

// PushLive publishes to a channel without persisting anything.
func (s *Service) PushLive(ctx context.Context, channel Channel, eventName string, payload any) error {
	if s.live == nil {
		return nil
	}
	return s.live.Publish(ctx, channel, eventName, payload)
}

func (s *Service) fanOut(ctx context.Context, users []directory.User, event Event) error {
	event = s.stamp(ctx, event)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	var (
		mu       sync.Mutex
		firstErr error
	)
	for _, u := range users {
		recipient := u.ID
		g.Go(func() error {
			e := event
			e.ID = ulid.Make().String()
			e.RecipientID = recipient
			if err := s.store.Create(gctx, e); err != nil {
				s.logger.ErrorContext(gctx, "notification create failed",
					"recipient", recipient, "type", e.Type, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil // isolate per-recipient failures
			}
			s.pushBestEffort(gctx, UserChannel(recipient), string(e.Type), e)
			return nil
		})
	}
	_ = g.Wait()
	return firstErr
}

func (s *Service) stamp(ctx context.Context, event Event) Event {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx)
	}
	if event.TenantID.IsNil() {
		event.TenantID = requestcontext.TenantID(ctx)
	}
	return event
}

func (s *Service) pushBestEffort(ctx context.Context, channel Channel, eventName string, payload any) {
	if s.live == nil {
		return
	}
	if err := s.live.Publish(ctx, channel, eventName, payload); err != nil {
		s.logger.WarnContext(ctx, "live push failed", "channel", channel, "event", eventName, "error", err)
	}
}
