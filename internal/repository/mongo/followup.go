package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/repository"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
)

const followupCompleted = "Completed"

type followupRepository struct {
	collection *mongo.Collection
}

func NewFollowupRepository(db *mongo.Database) repository.FollowupRepository {
	return &followupRepository{collection: db.Collection("followups")}
}

// FindDue returns open follow-ups scheduled in [from, to] whose reminder is still pending.
func (r *followupRepository) FindDue(ctx context.Context, from, to time.Time) ([]*model.Followup, error) {
	filter := bson.M{
		"followup_date": bson.M{"$gte": from, "$lte": to},
		"reminder_sent": bson.M{"$ne": true},
		"status":        bson.M{"$ne": followupCompleted},
	}
	opts := options.Find().SetSort(bson.D{{Key: "followup_date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find due followups: %w", err)
	}

	var followups []*model.Followup
	if err := cursor.All(ctx, &followups); err != nil {
		return nil, fmt.Errorf("failed to decode followups: %w", err)
	}
	return followups, nil
}

func (r *followupRepository) MarkReminded(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"reminder_sent": true, "reminded_at": time.Now().UTC()}}
	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("failed to mark followup reminded: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("followup", nil)
	}
	return nil
}
