// internal/notification/push.go

package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/sonuprasad23/spark/internal/profile"
)

// ErrNoDeviceToken means the recipient has no registered device
var ErrNoDeviceToken = errors.New("recipient has no device token")

// Gateway delivers a push notification to a user
type Gateway interface {
	Send(ctx context.Context, recipientUserID, title, body string, payload map[string]string) error
}

// RecipientLookup resolves a user to their device token
type RecipientLookup interface {
	GetUser(ctx context.Context, userID string) (*profile.UserProfile, error)
}

// FCMConfig holds Firebase credentials. Both empty means application default credentials.
type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// FCMGateway sends through Firebase Cloud Messaging
type FCMGateway struct {
	client     *messaging.Client
	recipients RecipientLookup
}

// NewFirebaseApp initializes the Firebase Admin SDK
func NewFirebaseApp(ctx context.Context, config *FCMConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	} else if config.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	}

	var appConfig *firebase.Config
	if config.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: config.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

// NewFCMGateway creates an FCM gateway from an initialized Firebase app
func NewFCMGateway(ctx context.Context, app *firebase.App, recipients RecipientLookup) (*FCMGateway, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return &FCMGateway{client: client, recipients: recipients}, nil
}

func (g *FCMGateway) Send(ctx context.Context, recipientUserID, title, body string, payload map[string]string) error {
	user, err := g.recipients.GetUser(ctx, recipientUserID)
	if err != nil {
		return fmt.Errorf("failed to look up recipient %s: %w", recipientUserID, err)
	}
	if user.FCMToken == "" {
		return ErrNoDeviceToken
	}

	data := make(map[string]string, len(payload))
	for k, v := range payload {
		data[k] = v
	}

	message := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:       "default",
				ClickAction: "FLUTTER_NOTIFICATION_CLICK",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{Title: title, Body: body},
					Sound: "default",
				},
			},
		},
	}

	if _, err := g.client.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	return nil
}

// SentNotification is a push recorded by MockGateway
type SentNotification struct {
	RecipientUserID string
	Title           string
	Body            string
	Payload         map[string]string
}

// MockGateway records notifications instead of sending them
type MockGateway struct {
	mu   sync.Mutex
	sent []SentNotification
	err  error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// FailWith makes every later Send return err
func (m *MockGateway) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockGateway) Send(ctx context.Context, recipientUserID, title, body string, payload map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, SentNotification{
		RecipientUserID: recipientUserID,
		Title:           title,
		Body:            body,
		Payload:         payload,
	})
	return nil
}

// Sent returns a copy of everything sent so far
func (m *MockGateway) Sent() []SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentNotification, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns notifications for one recipient
func (m *MockGateway) SentTo(userID string) []SentNotification {
	var out []SentNotification
	for _, n := range m.Sent() {
		if n.RecipientUserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// Reset forgets recorded notifications
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
