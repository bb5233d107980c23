package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
)

const collectionAuthEvents = "auth_events"

// EventRepository implements ports.AuthEventRepository using MongoDB.
type EventRepository struct {
	db *mongo.Database
}

var _ ports.AuthEventRepository = (*EventRepository)(nil)

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{db: db}
}

// EnsureIndexes indexes the audit trail by terminal and by profile.
func (r *EventRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.db.Collection(collectionAuthEvents).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "terminal_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "profile_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return err
}

// InsertEvent appends an authentication attempt to the auth_events audit collection.
func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	doc := bson.M{
		"terminal_id":  event.TerminalID,
		"method":       string(event.Method),
		"success":      event.Success,
		"timestamp":    event.Timestamp.UTC(),
		"processed_at": time.Now().UTC(),
	}
	if event.ProfileID != "" {
		doc["profile_id"] = event.ProfileID
	}
	if event.Email != "" {
		doc["email"] = event.Email
	}
	if event.ErrorType != "" {
		doc["error_type"] = string(event.ErrorType)
	}
	if event.Attempt > 0 {
		doc["attempt"] = event.Attempt
	}

	_, err := r.db.Collection(collectionAuthEvents).InsertOne(ctx, doc)
	return err
}
