package mongo

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/headstart-tech/admissions-api/internal/model"
)

// normalize turns decoded BSON into plain maps, slices and scalars so the result
// JSON-encodes the same way whether it came from the driver or the cache.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		return normalizeMap(t)
	case map[string]interface{}:
		return normalizeMap(t)
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		return normalizeSlice(t)
	case []interface{}:
		return normalizeSlice(t)
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

func normalizeMap(in map[string]interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(in))
	for k, v := range in {
		m[k] = normalize(v)
	}
	return m
}

func normalizeSlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = normalize(v)
	}
	return out
}

// toTrees converts {id: {feature_id: node}} into typed trees.
func toTrees(v interface{}) (map[string]model.Tree, error) {
	byID, ok := normalize(v).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected trees value of type %T", v)
	}

	trees := make(map[string]model.Tree, len(byID))
	for id, raw := range byID {
		features, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("tree %s: unexpected value of type %T", id, raw)
		}
		tree := make(model.Tree, len(features))
		for featureID, node := range features {
			n, ok := node.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("tree %s: feature %s is %T, not an object", id, featureID, node)
			}
			tree[featureID] = n
		}
		trees[id] = tree
	}
	return trees, nil
}
