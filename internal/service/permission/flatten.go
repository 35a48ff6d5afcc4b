package permission

import (
	"sort"

	"github.com/headstart-tech/admissions-api/internal/model"
)

// Flatten lifts every node of a nested feature tree to the top level, keyed by its
// feature id, and drops the features key. Siblings are visited in sorted order and a
// parent is written before its children, so on an id collision the later node wins.
func Flatten(tree model.Tree) model.Tree {
	out := make(model.Tree, len(tree))
	flattenInto(out, tree)
	return out
}

func flattenInto(out model.Tree, tree model.Tree) {
	for _, key := range sortedKeys(tree) {
		node := tree[key]

		flat := make(model.Node, len(node))
		for k, v := range node {
			if k == model.KeyFeatures {
				continue
			}
			flat[k] = copyValue(v)
		}
		out[featureID(key, node)] = flat

		if children, ok := asTree(node[model.KeyFeatures]); ok {
			flattenInto(out, children)
		}
	}
}

// featureID prefers the node's own feature_id over the key it was stored under.
func featureID(key string, node model.Node) string {
	if id, ok := node[model.KeyFeatureID].(string); ok && id != "" {
		return id
	}
	return key
}

func sortedKeys(tree model.Tree) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
