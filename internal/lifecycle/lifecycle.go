package lifecycle

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"rack-leasing-backend/config"
	"rack-leasing-backend/internal/metrics"
	"rack-leasing-backend/internal/model"
)

// Store is the persistence the lifecycle rules need. store.Store satisfies it.
type Store interface {
	CreateRack(ctx context.Context, rack *model.Rack) error
	CreateServer(ctx context.Context, server *model.Server) error
	SaveRack(ctx context.Context, rack *model.Rack) error
	SaveServer(ctx context.Context, server *model.Server) error
	TransitionServer(ctx context.Context, server *model.Server, from model.ServerStatus) (bool, error)
	CountServersOwnedBy(ctx context.Context, rackID int64) (int64, error)
}

// ExpiryRule decides when an active server falls back to unpaid.
type ExpiryRule int

const (
	// ExpiryLegacy demotes an active server while paid_until >= now.
	// This reads inverted but is how the system has always behaved.
	ExpiryLegacy ExpiryRule = iota
	// ExpiryLapsed demotes an active server once paid_until < now.
	ExpiryLapsed
)

// ParseExpiryRule maps a config value to an ExpiryRule.
func ParseExpiryRule(s string) (ExpiryRule, error) {
	switch s {
	case "", config.ExpiryRuleLegacy:
		return ExpiryLegacy, nil
	case config.ExpiryRuleLapsed:
		return ExpiryLapsed, nil
	}
	return ExpiryLegacy, fmt.Errorf("unknown expiry rule %q", s)
}

// Service applies the rack capacity gate and the server state machine.
type Service struct {
	store  Store
	clock  Clock
	logger *log.Logger
	rule   ExpiryRule
	// settle draws the delay a paid server waits before it becomes active.
	settle func() time.Duration
}

// NewService creates a lifecycle service. A nil clock or logger falls back to
// the system clock and the standard logger.
func NewService(store Store, clock Clock, logger *log.Logger, cfg config.LifecycleConfig) (*Service, error) {
	rule, err := ParseExpiryRule(cfg.ExpiryRule)
	if err != nil {
		return nil, err
	}
	if cfg.SettleMinSeconds <= 0 || cfg.SettleMaxSeconds < cfg.SettleMinSeconds {
		return nil, fmt.Errorf("invalid settle window [%d, %d]", cfg.SettleMinSeconds, cfg.SettleMaxSeconds)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}

	lo, hi := cfg.SettleMinSeconds, cfg.SettleMaxSeconds
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger,
		rule:   rule,
		settle: func() time.Duration {
			return time.Duration(lo+rand.Intn(hi-lo+1)) * time.Second
		},
	}, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// CreateRack creates an empty rack with the given number of slots.
func (s *Service) CreateRack(ctx context.Context, slots int) (*model.Rack, error) {
	if slots < 1 {
		return nil, &Error{Kind: KindInvalidArgument, Msg: fmt.Sprintf("a rack needs at least one slot, got %d", slots)}
	}
	now := s.clock.Now()
	rack := &model.Rack{Slots: slots, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateRack(ctx, rack); err != nil {
		return nil, err
	}
	s.logger.Printf("created new %s", rack)
	return rack, nil
}

// AddServer creates a new unpaid server in rack if it has a free slot.
func (s *Service) AddServer(ctx context.Context, rack *model.Rack) (*model.Server, error) {
	assigned, err := s.store.CountServersOwnedBy(ctx, rack.ID)
	if err != nil {
		return nil, err
	}
	if assigned >= int64(rack.Slots) {
		metrics.CapacityRejections.Inc()
		return nil, &Error{
			Kind: KindCapacityExceeded,
			Msg:  fmt.Sprintf("rack %d has %d of %d slots assigned", rack.ID, assigned, rack.Slots),
		}
	}

	now := s.clock.Now()
	prevUpdatedAt := rack.UpdatedAt
	rack.UpdatedAt = now
	if err := s.store.SaveRack(ctx, rack); err != nil {
		rack.UpdatedAt = prevUpdatedAt
		return nil, err
	}

	server := &model.Server{
		RackID:    rack.ID,
		Status:    model.StatusUnpaid,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateServer(ctx, server); err != nil {
		return nil, err
	}
	s.logger.Printf("created new %s", server)
	s.logger.Printf("New %s added to %s", server, rack)
	return server, nil
}

// Pay marks an unpaid server as paid through until, which must lie in the future.
func (s *Service) Pay(ctx context.Context, server *model.Server, until time.Time) error {
	if server.Status != model.StatusUnpaid {
		return &Error{
			Kind: KindInvalidStateTransition,
			Msg:  fmt.Sprintf("%s is %s, only unpaid servers can be paid", server, server.Status),
		}
	}
	now := s.clock.Now()
	if !until.After(now) {
		return &Error{
			Kind: KindInvalidArgument,
			Msg:  fmt.Sprintf("paid_until %s is not after %s", until.Format(time.RFC3339), now.Format(time.RFC3339)),
		}
	}

	prev := *server
	server.Status = model.StatusPaid
	server.PaidUntil = &until
	server.UpdatedAt = now
	if err := s.store.SaveServer(ctx, server); err != nil {
		*server = prev
		return err
	}
	metrics.ServerTransitions.WithLabelValues(string(prev.Status), string(model.StatusPaid)).Inc()
	s.logger.Printf("%s was paid", server)
	return nil
}

// Delete retires a server. It is allowed from any status, deleted included.
func (s *Service) Delete(ctx context.Context, server *model.Server) error {
	prev := *server
	server.Status = model.StatusDeleted
	server.UpdatedAt = s.clock.Now()
	if err := s.store.SaveServer(ctx, server); err != nil {
		*server = prev
		return err
	}
	metrics.ServerTransitions.WithLabelValues(string(prev.Status), string(model.StatusDeleted)).Inc()
	s.logger.Printf("%s was deleted", server)
	return nil
}

// UpdateStatus advances a server by at most one time-driven transition.
// It reports whether a transition happened; err is only ever a store failure,
// in which case the server is left as it was. The write only lands while the
// stored row still has the status the server was read with.
func (s *Service) UpdateStatus(ctx context.Context, server *model.Server) (bool, error) {
	now := s.clock.Now()
	next, ok := s.nextStatus(server, now)
	if !ok {
		return false, nil
	}

	prev := *server
	server.Status = next
	server.UpdatedAt = now
	moved, err := s.store.TransitionServer(ctx, server, prev.Status)
	if err != nil {
		*server = prev
		return false, err
	}
	if !moved {
		// Another writer changed the row since it was read.
		*server = prev
		s.logger.Printf("%s is no longer %s; leaving it alone", server, prev.Status)
		return false, nil
	}
	metrics.ServerTransitions.WithLabelValues(string(prev.Status), string(next)).Inc()
	s.logger.Printf("%s went from %s to %s", server, prev.Status, next)
	return true, nil
}

// nextStatus evaluates the transition rules in order; the first match wins.
func (s *Service) nextStatus(server *model.Server, now time.Time) (model.ServerStatus, bool) {
	if server.Status == model.StatusActive && s.expired(server, now) {
		return model.StatusUnpaid, true
	}
	// The settle delay is only drawn for paid servers, once per evaluation.
	if server.Status == model.StatusPaid && !now.Before(server.UpdatedAt.Add(s.settle())) {
		return model.StatusActive, true
	}
	return server.Status, false
}

func (s *Service) expired(server *model.Server, now time.Time) bool {
	if server.PaidUntil == nil {
		return false
	}
	switch s.rule {
	case ExpiryLapsed:
		return server.PaidUntil.Before(now)
	default:
		return !server.PaidUntil.Before(now)
	}
}
