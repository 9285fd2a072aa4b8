// internal/common/database/firestore.go
// Firestore client and collection names

package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection names
const (
	UsersCollection         = "users"
	PreferencesCollection   = "preferences"
	QuestionnaireCollection = "questionnaires"
	MatchesCollection       = "matches"
	RoomsCollection         = "rooms"
	MessagesCollection      = "messages"
	RoomsArchiveCollection  = "rooms_archive"
)

// FirestoreConfig holds Firestore connection settings
type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// NewFirestoreClient creates a Firestore client
func NewFirestoreClient(ctx context.Context, config *FirestoreConfig) (*firestore.Client, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	} else if config.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	}

	projectID := config.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// IsNotFound reports whether a Firestore error means the document does not exist
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// IsAlreadyExists reports whether a Firestore create collided with an existing document
func IsAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
