package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"rack-leasing-backend/internal/metrics"
	"rack-leasing-backend/internal/model"
)

// Event announces that a server reached a new status.
type Event struct {
	ServerID int64
	Status   model.ServerStatus
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool. With nil webpush options the
// workers drain jobs without sending anything.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Event, size*16),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			wp.sendNotificationsForServer(ctx, ev)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event, giving up if ctx is cancelled first.
func (wp *WorkerPool) Dispatch(ctx context.Context, ev Event) {
	select {
	case wp.jobs <- ev:
	case <-ctx.Done():
		log.Printf("Dropping notification for server %d: %v", ev.ServerID, ctx.Err())
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

// Message renders the push text for an event. rackID is 0 when unknown.
func Message(ev Event, rackID int64) string {
	label := fmt.Sprintf("Server %d", ev.ServerID)
	if rackID != 0 {
		label = fmt.Sprintf("Server %d in rack %d", ev.ServerID, rackID)
	}
	switch ev.Status {
	case model.StatusActive:
		return label + " is now active"
	case model.StatusUnpaid:
		return label + " payment has lapsed"
	default:
		return fmt.Sprintf("%s is now %s", label, ev.Status)
	}
}

// sendNotificationsForServer fetches subscriptions and sends notifications for a given server.
func (wp *WorkerPool) sendNotificationsForServer(ctx context.Context, ev Event) {
	if wp.webpush == nil {
		log.Printf("Push not configured; dropping notification for server %d", ev.ServerID)
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_server_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.server_id = ?", ev.ServerID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for server %d: %v", ev.ServerID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for server %d", len(subscriptions), ev.ServerID)

	var server model.Server
	var rackID int64
	if err := wp.db.WithContext(ctx).
		Select("rack_id").
		First(&server, ev.ServerID).Error; err != nil {
		log.Printf("Error fetching server %d: %v", ev.ServerID, err)
	} else {
		rackID = server.RackID
	}

	message := Message(ev, rackID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		metrics.Notifications.WithLabelValues("expired").Inc()
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
}
