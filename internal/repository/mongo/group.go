package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/headstart-tech/admissions-api/internal/repository"
)

type groupRepository struct {
	collection *mongo.Collection
}

func NewGroupRepository(db *mongo.Database) repository.GroupRepository {
	return &groupRepository{collection: db.Collection("groups")}
}

// ListUserGroupIDs returns active groups containing the user, oldest first. The order
// is the order group overlays are applied in.
func (r *groupRepository) ListUserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	filter := bson.M{
		"user_ids":  idValue(userID),
		"is_active": bson.M{"$ne": false},
	}
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups for user %s: %w", userID, err)
	}

	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID.Hex())
	}
	return ids, nil
}
