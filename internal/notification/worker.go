package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"table-reservation-backend/internal/model"
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

// Source is the slice of the store the workers read from.
type Source interface {
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	Subscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Payload is the JSON body delivered to the staff browser.
type Payload struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	ReservationID string `json:"reservationId"`
}

// WorkerPool fans new-reservation alerts out to staff push subscriptions.
type WorkerPool struct {
	size    int
	jobs    chan string
	source  Source
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, source Source, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size*16),
		source:  source,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case reservationID := <-wp.jobs:
			wp.notifyReservation(ctx, reservationID)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert for a new reservation. When the queue is full
// the alert is dropped rather than stalling the booking request.
func (wp *WorkerPool) Dispatch(reservationID string) {
	select {
	case wp.jobs <- reservationID:
	default:
		log.Printf("Notification queue full; dropping alert for reservation %s", reservationID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

func (wp *WorkerPool) notifyReservation(ctx context.Context, reservationID string) {
	r, err := wp.source.GetReservation(ctx, reservationID)
	if err != nil {
		log.Printf("Error fetching reservation %s: %v", reservationID, err)
		return
	}

	subs, err := wp.source.Subscriptions(ctx)
	if err != nil {
		log.Printf("Error fetching subscriptions: %v", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(Payload{
		Title:         "New reservation",
		Body:          fmt.Sprintf("%s, party of %d, %s %s", r.CustomerName, r.PartySize, r.ReservationDate, r.ReservationTime),
		ReservationID: r.ID,
	})
	if err != nil {
		log.Printf("Error encoding payload for reservation %s: %v", reservationID, err)
		return
	}

	log.Printf("Sending %d notifications for reservation %s", len(subs), reservationID)
	for _, sub := range subs {
		wp.sendNotification(ctx, sub, payload)
	}
}

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
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.source.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
