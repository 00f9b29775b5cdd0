package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"rack-leasing-backend/config"
	"rack-leasing-backend/internal/metrics"
	"rack-leasing-backend/internal/model"
	"rack-leasing-backend/internal/notification"
	"rack-leasing-backend/internal/store"
)

// StatusUpdater advances one server's status; lifecycle.Service implements it.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, server *model.Server) (bool, error)
}

// Transition records one status change made during a sweep.
type Transition struct {
	ServerID int64
	From     model.ServerStatus
	To       model.ServerStatus
}

// Service periodically advances every server that can still change on its own.
type Service struct {
	cfg        *config.Config
	store      store.Store
	lifecycle  StatusUpdater
	workerPool *notification.WorkerPool
}

// NewService creates and initializes a new sweeper service.
func NewService(cfg *config.Config, store store.Store, lifecycle StatusUpdater) *Service {
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	}

	return &Service{
		cfg:        cfg,
		store:      store,
		lifecycle:  lifecycle,
		workerPool: notification.NewWorkerPool(cfg.WorkerPool.Size, store.DB(), webpushOptions),
	}
}

// Run sweeps once immediately and then on every interval until ctx is done.
// The notification workers start even when sweeping is disabled, since the
// API dispatches to them too.
func (s *Service) Run(ctx context.Context) {
	s.workerPool.Start(ctx)

	if !s.cfg.Lifecycle.SweepEnabled {
		log.Println("Sweeper is disabled. Not starting.")
		return
	}
	log.Println("Starting sweeper service...")

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Lifecycle.SweepInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper service shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Lifecycle.SweepInterval)
		}
	}
}

// Notifier returns the worker pool that delivers transition notifications.
func (s *Service) Notifier() *notification.WorkerPool {
	return s.workerPool
}

// SweepOnce calls UpdateStatus on every paid or active server and dispatches a
// notification for each transition. A failing server does not stop the sweep.
func (s *Service) SweepOnce(ctx context.Context) []Transition {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	servers, err := s.store.ListServersByStatus(ctx, model.StatusPaid, model.StatusActive)
	if err != nil {
		log.Printf("Sweep aborted, could not list servers: %v", err)
		return nil
	}

	var transitions []Transition
	for i := range servers {
		server := &servers[i]
		from := server.Status
		changed, err := s.lifecycle.UpdateStatus(ctx, server)
		if err != nil {
			log.Printf("Error updating status of server %d: %v", server.ID, err)
			continue
		}
		if !changed {
			continue
		}
		transitions = append(transitions, Transition{ServerID: server.ID, From: from, To: server.Status})
	}

	if len(transitions) > 0 {
		log.Printf("Sweep moved %d of %d servers; dispatching notifications", len(transitions), len(servers))
		for _, tr := range transitions {
			s.workerPool.Dispatch(ctx, notification.Event{ServerID: tr.ServerID, Status: tr.To})
		}
	}
	return transitions
}
