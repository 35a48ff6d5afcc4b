package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/repository"
)

type permissionRepository struct {
	db *mongo.Database
}

func NewPermissionRepository(db *mongo.Database) repository.PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) FeatureTrees(ctx context.Context, src model.PermissionSource, id, collegeID string) (map[string]model.Tree, error) {
	cursor, err := r.db.Collection(src.Collection).Aggregate(ctx, featurePipeline(src, id, collegeID))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", src.Collection, err)
	}

	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode %s trees: %w", src.Collection, err)
	}
	if len(results) == 0 {
		return map[string]model.Tree{}, nil
	}

	trees, err := toTrees(results[0]["trees"])
	if err != nil {
		return nil, fmt.Errorf("malformed %s aggregation result: %w", src.Collection, err)
	}
	return trees, nil
}

// featurePipeline keeps documents with a non-empty feature object, drops entries
// that are not objects carrying a non-empty string feature_id, and folds every
// document into one {id: features} mapping.
func featurePipeline(src model.PermissionSource, id, collegeID string) mongo.Pipeline {
	match := bson.D{
		{Key: src.FeatureField, Value: bson.D{{Key: "$type", Value: "object"}, {Key: "$ne", Value: bson.D{}}}},
	}
	if id != "" {
		match = append(match, bson.E{Key: src.IDField, Value: idValue(id)})
	}
	if src.CollegeScoped && collegeID != "" {
		match = append(match, bson.E{Key: "college_id", Value: idValue(collegeID)})
	}

	featureShaped := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$$item.v"}}, "object"}}},
		bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: "$$item.v." + model.KeyFeatureID}}, "string"}}},
		bson.D{{Key: "$ne", Value: bson.A{"$$item.v." + model.KeyFeatureID, ""}}},
	}}}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "id", Value: bson.D{{Key: "$toString", Value: "$" + src.IDField}}},
			{Key: "features", Value: bson.D{{Key: "$arrayToObject", Value: bson.D{{Key: "$filter", Value: bson.D{
				{Key: "input", Value: bson.D{{Key: "$objectToArray", Value: "$" + src.FeatureField}}},
				{Key: "as", Value: "item"},
				{Key: "cond", Value: featureShaped},
			}}}}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "trees", Value: bson.D{{Key: "$mergeObjects", Value: bson.D{{Key: "$arrayToObject", Value: bson.A{
				bson.A{bson.D{{Key: "k", Value: "$id"}, {Key: "v", Value: "$features"}}},
			}}}}}},
		}}},
	}
}
