package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"bioreactor-monitor/config"
	"bioreactor-monitor/internal/apperr"
	"bioreactor-monitor/internal/metrics"
	"bioreactor-monitor/internal/model"
)

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

// Store is what the workers read and prune.
type Store interface {
	GetAlert(ctx context.Context, id int64) (*model.Alert, error)
	ReactorName(ctx context.Context, id int64) (string, error)
	PushSubscriptionsForReactor(ctx context.Context, reactorID int64) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// Payload is the JSON body delivered to the browser service worker.
type Payload struct {
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	AlertID   int64          `json:"alert_id"`
	ReactorID int64          `json:"reactor_id"`
	Severity  model.Severity `json:"severity"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan int64
	store   Store
	webpush *webpush.Options
	sender  NotificationSender
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, st Store, webpushOptions *webpush.Options, log zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, queueSize),
		store:   st,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		log:     log,
	}
}

// OptionsFromConfig builds webpush options from the push config, or nil when push
// is disabled or the keys are missing.
func OptionsFromConfig(cfg config.PushConfig) *webpush.Options {
	if !cfg.Enabled || cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil
	}
	return &webpush.Options{
		Subscriber:      cfg.Subject,
		VAPIDPublicKey:  cfg.PublicKey,
		VAPIDPrivateKey: cfg.PrivateKey,
		TTL:             cfg.TTL,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With().Int("worker", id).Logger()
	log.Debug().Msg("worker started")
	for {
		select {
		case alertID := <-wp.jobs:
			wp.sendNotificationsForAlert(ctx, alertID)
		case <-ctx.Done():
			log.Debug().Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues an alert without blocking. It reports false when the queue is full.
func (wp *WorkerPool) Dispatch(alertID int64) bool {
	select {
	case wp.jobs <- alertID:
		return true
	default:
		metrics.PushNotifications.WithLabelValues("dropped").Inc()
		return false
	}
}

// sendNotificationsForAlert fans an alert out to the push subscriptions of its reactor.
func (wp *WorkerPool) sendNotificationsForAlert(ctx context.Context, alertID int64) {
	log := wp.log.With().Int64("alert_id", alertID).Logger()

	alert, err := wp.store.GetAlert(ctx, alertID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load alert")
		return
	}

	subscriptions, err := wp.store.PushSubscriptionsForReactor(ctx, alert.ReactorID)
	if err != nil {
		log.Error().Err(err).Int64("reactor_id", alert.ReactorID).Msg("failed to fetch subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	name, err := wp.store.ReactorName(ctx, alert.ReactorID)
	if err != nil {
		name = model.DefaultReactorName(alert.ReactorID)
	}

	payload, err := json.Marshal(Payload{
		Title:     fmt.Sprintf("%s alert on %s", alert.Severity, name),
		Body:      alert.Message,
		AlertID:   alert.ID,
		ReactorID: alert.ReactorID,
		Severity:  alert.Severity,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode notification")
		return
	}

	log.Info().Int("subscriptions", len(subscriptions)).Msg("sending push notifications")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	// Manually construct the webpush.Subscription object
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		metrics.PushNotifications.WithLabelValues("failed").Inc()
		wp.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("error sending notification")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		metrics.PushNotifications.WithLabelValues("expired").Inc()
		wp.log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
			wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
		return
	}
	metrics.PushNotifications.WithLabelValues("sent").Inc()
}
