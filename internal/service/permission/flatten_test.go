package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headstart-tech/admissions-api/internal/model"
)

func nestedTree() model.Tree {
	return model.Tree{
		"lead_manager": {
			"feature_id": "lead_manager",
			"visibility": true,
			"permissions": map[string]interface{}{"read": true, "write": false},
			"features": map[string]interface{}{
				"lead_upload": map[string]interface{}{
					"feature_id":  "lead_upload",
					"visibility":  true,
					"permissions": map[string]interface{}{"write": true},
					"features": map[string]interface{}{
						"bulk_upload": map[string]interface{}{
							"feature_id": "bulk_upload",
							"visibility": false,
						},
					},
				},
			},
		},
		"reports": {
			"feature_id": "reports",
			"visibility": true,
		},
	}
}

func TestFlatten_Completeness(t *testing.T) {
	flat := Flatten(nestedTree())

	assert.ElementsMatch(t, []string{"lead_manager", "lead_upload", "bulk_upload", "reports"}, sortedKeys(flat))
	for id, node := range flat {
		assert.NotContains(t, node, model.KeyFeatures, "feature %s still nested", id)
		assert.Equal(t, id, node[model.KeyFeatureID])
	}
	assert.Equal(t, false, flat["bulk_upload"]["visibility"])
	assert.Equal(t, map[string]interface{}{"write": true}, flat["lead_upload"]["permissions"])
}

func TestFlatten_Idempotent(t *testing.T) {
	once := Flatten(nestedTree())
	twice := Flatten(once)
	assert.Equal(t, once, twice)
}

func TestFlatten_DoesNotShareInput(t *testing.T) {
	tree := nestedTree()
	flat := Flatten(tree)

	flat["lead_manager"]["permissions"].(map[string]interface{})["read"] = false
	perms := tree["lead_manager"]["permissions"].(map[string]interface{})
	assert.Equal(t, true, perms["read"])
	assert.Contains(t, tree["lead_manager"], model.KeyFeatures)
}

func TestFlatten_CollisionDeeperWins(t *testing.T) {
	tree := model.Tree{
		"a": {
			"feature_id": "shared",
			"visibility": true,
			"features": map[string]interface{}{
				"child": map[string]interface{}{
					"feature_id": "shared",
					"visibility": false,
				},
			},
		},
	}

	flat := Flatten(tree)
	require.Len(t, flat, 1)
	assert.Equal(t, false, flat["shared"]["visibility"])
}

func TestFlatten_SkipsNonObjectChildren(t *testing.T) {
	tree := model.Tree{
		"a": {
			"feature_id": "a",
			"features":   map[string]interface{}{"bad": "not a node"},
		},
		"b": {
			"feature_id": "b",
			"features":   "not a map",
		},
	}

	flat := Flatten(tree)
	assert.ElementsMatch(t, []string{"a", "b"}, sortedKeys(flat))
}

func TestFlatten_Empty(t *testing.T) {
	flat := Flatten(model.Tree{})
	assert.NotNil(t, flat)
	assert.Empty(t, flat)
}
