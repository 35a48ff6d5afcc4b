package model

// Node is one feature of a permission tree. Known keys are feature_id, visibility,
// permissions (operation -> bool) and features (child id -> Node); anything else is
// carried through as an opaque scalar.
type Node = map[string]interface{}

// Tree maps feature id to node.
type Tree = map[string]Node

const (
	KeyFeatureID   = "feature_id"
	KeyVisibility  = "visibility"
	KeyPermissions = "permissions"
	KeyFeatures    = "features"
)

// PermissionSource describes where a family of permission trees is stored and how
// its cache entries are namespaced.
type PermissionSource struct {
	// Name is the cache collection segment.
	Name          string
	Collection    string
	FeatureField  string
	// IDField keys each document's tree in the rebuilt mapping.
	IDField       string
	CollegeScoped bool
}

var (
	RoleFeatures = PermissionSource{
		Name:         "role_features",
		Collection:   "roles",
		FeatureField: "menus",
		IDField:      "_id",
	}
	GroupFeatures = PermissionSource{
		Name:         "group_features",
		Collection:   "groups",
		FeatureField: "permission",
		IDField:      "_id",
	}
	CollegeScreens = PermissionSource{
		Name:          "college_screens",
		Collection:    "college_screens",
		FeatureField:  "screen_details",
		IDField:       "dashboard_type",
		CollegeScoped: true,
	}
)

// EffectivePermissions is computed per request and never cached as a whole.
type EffectivePermissions struct {
	UserID        string   `json:"user_id"`
	RoleID        string   `json:"role_id"`
	CollegeID     string   `json:"college_id,omitempty"`
	DashboardType string   `json:"dashboard_type,omitempty"`
	GroupIDs      []string `json:"group_ids,omitempty"`
	Features      Tree     `json:"features"`
}

// Operations carried in a node's permissions map.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpEdit   = "edit"
	OpDelete = "delete"
)

// Features that guard administrative routes.
const (
	FeatureUserPermissions = "user_permissions"
	FeatureRoleManagement  = "role_management"
	FeatureNotifications   = "notifications"
)

// GuardDashboard names the college screen applied when checking route permissions.
const GuardDashboard = "admin_dashboard"

// Allows reports whether tree grants op on feature. The feature must be present and
// visible, and its permissions must set op to true.
func Allows(tree Tree, feature, op string) bool {
	node, ok := tree[feature]
	if !ok {
		return false
	}
	if visible, _ := node[KeyVisibility].(bool); !visible {
		return false
	}
	perms, ok := node[KeyPermissions].(map[string]interface{})
	if !ok {
		return false
	}
	granted, _ := perms[op].(bool)
	return granted
}
