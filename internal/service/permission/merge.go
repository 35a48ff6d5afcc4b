package permission

import (
	"github.com/headstart-tech/admissions-api/internal/model"
)

const (
	// GrantMode lets an overlay only add capabilities; features it omits are untouched.
	GrantMode = true
	// DenyMode hides every feature the overlay omits.
	DenyMode = false
)

// Merge returns a new tree shaped like base with overlay applied. Only an overlay
// value equal to suppress can change a boolean; overlay-only features are ignored.
// Neither input is modified.
func Merge(base, overlay model.Tree, suppress bool) model.Tree {
	out := make(model.Tree, len(base))
	for id, node := range base {
		other, ok := overlay[id]
		if !ok {
			merged := copyNode(node)
			if suppress == DenyMode {
				merged[model.KeyVisibility] = false
			}
			out[id] = merged
			continue
		}
		out[id] = mergeNode(node, other, suppress)
	}
	return out
}

// Compose applies group overlays in grant mode, in order, then the college overlay in
// deny mode. A nil college tree means the college defines no screens; an empty
// non-nil one hides everything.
func Compose(base model.Tree, groups []model.Tree, college model.Tree) model.Tree {
	result := copyTree(base)
	for _, g := range groups {
		result = Merge(result, g, GrantMode)
	}
	if college != nil {
		result = Merge(result, college, DenyMode)
	}
	return result
}

func mergeNode(base, overlay model.Node, suppress bool) model.Node {
	out := make(model.Node, len(base))
	for key, bv := range base {
		ov, present := overlay[key]
		if !present {
			out[key] = copyValue(bv)
			continue
		}

		switch key {
		case model.KeyPermissions:
			out[key] = mergePermissions(bv, ov, suppress)
		case model.KeyFeatures:
			bt, bok := asTree(bv)
			ot, ook := asTree(ov)
			if !bok || !ook {
				out[key] = copyValue(bv)
				continue
			}
			out[key] = treeToMap(Merge(bt, ot, suppress))
		default:
			if b, ok := bv.(bool); ok {
				if o, ok := ov.(bool); ok && o == suppress {
					out[key] = suppress
				} else {
					out[key] = b
				}
				continue
			}
			out[key] = copyValue(ov)
		}
	}
	return out
}

// mergePermissions only touches operations both sides name.
func mergePermissions(base, overlay interface{}, suppress bool) interface{} {
	bp, ok := asMap(base)
	if !ok {
		return copyValue(base)
	}
	op, ok := asMap(overlay)
	if !ok {
		return copyValue(base)
	}

	out := make(map[string]interface{}, len(bp))
	for name, bv := range bp {
		if ov, ok := op[name].(bool); ok && ov == suppress {
			out[name] = suppress
			continue
		}
		out[name] = copyValue(bv)
	}
	return out
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case map[string]bool:
		m := make(map[string]interface{}, len(t))
		for k, b := range t {
			m[k] = b
		}
		return m, true
	}
	return nil, false
}

// asTree reads a nested features value, which is map[string]interface{} once decoded
// from JSON or BSON. Children that are not objects are skipped.
func asTree(v interface{}) (model.Tree, bool) {
	switch t := v.(type) {
	case model.Tree:
		return t, true
	case map[string]interface{}:
		tree := make(model.Tree, len(t))
		for k, child := range t {
			if node, ok := child.(map[string]interface{}); ok {
				tree[k] = node
			}
		}
		return tree, true
	}
	return nil, false
}

func treeToMap(tree model.Tree) map[string]interface{} {
	m := make(map[string]interface{}, len(tree))
	for k, node := range tree {
		m[k] = node
	}
	return m
}

func copyTree(tree model.Tree) model.Tree {
	out := make(model.Tree, len(tree))
	for k, node := range tree {
		out[k] = copyNode(node)
	}
	return out
}

func copyNode(node model.Node) model.Node {
	out := make(model.Node, len(node))
	for k, v := range node {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyNode(t)
	case model.Tree:
		return treeToMap(copyTree(t))
	case map[string]bool:
		m := make(map[string]interface{}, len(t))
		for k, b := range t {
			m[k] = b
		}
		return m
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
