package services

import (
	"context"
	"log"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Notification event types emitted by the fee subsystem
const (
	EventPaymentConfirmation = "payment_confirmation"
	EventPaymentRefunded     = "payment_refunded"
	EventFeeReminder         = "fee_reminder"
)

// Notifier dispatches fire-and-forget notifications after a payment event.
// A failed dispatch is logged and dropped; it never rolls back the payment
// transaction that triggered it.
type Notifier interface {
	Notify(ctx context.Context, event string, studentID uint, payload map[string]string) error
}

// FCMNotifier delivers events as FCM data messages on a per-student topic.
// Device subscription is managed by the mobile/parent app, not here.
type FCMNotifier struct {
	client *messaging.Client
}

// NewFCMNotifier initializes the Firebase Admin SDK and returns a messaging-backed notifier
func NewFCMNotifier(ctx context.Context, credPath string) (*FCMNotifier, error) {
	opt := option.WithCredentialsFile(credPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}
	return &FCMNotifier{client: client}, nil
}

// Notify sends a data message to the student's topic
func (n *FCMNotifier) Notify(ctx context.Context, event string, studentID uint, payload map[string]string) error {
	data := map[string]string{"event": event}
	for k, v := range payload {
		data[k] = v
	}

	_, err := n.client.Send(ctx, &messaging.Message{
		Topic: studentTopic(studentID),
		Data:  data,
	})
	return err
}

func studentTopic(studentID uint) string {
	return "student-" + strconv.FormatUint(uint64(studentID), 10)
}

// LogNotifier is the fallback when Firebase credentials are not configured.
// It only writes the event to the application log.
type LogNotifier struct{}

// Notify logs the event
func (LogNotifier) Notify(_ context.Context, event string, studentID uint, payload map[string]string) error {
	log.Printf("notify [%s] student=%d payload=%v", event, studentID, payload)
	return nil
}
