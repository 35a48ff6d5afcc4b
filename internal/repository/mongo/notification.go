package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/repository"
)

type notificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) repository.NotificationRepository {
	return &notificationRepository{collection: db.Collection("notifications")}
}

// Create inserts the event and sets the generated id on it.
func (r *notificationRepository) Create(ctx context.Context, event *model.NotificationEvent) error {
	res, err := r.collection.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		event.ID = oid
	}
	return nil
}

func (r *notificationRepository) ListRecent(ctx context.Context, sendTo string, limit int64) ([]*model.NotificationEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "event_datetime", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"send_to": sendTo}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	var events []*model.NotificationEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return events, nil
}
