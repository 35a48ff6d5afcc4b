package cache

import (
	"strings"
)

const notificationSuffix = "_notifications"

// Keyspace namespaces cache keys per deployment environment and tenant.
// Layout: {env}/{folder}/{collection}/{college_id}/{suffix}; empty segments are omitted.
type Keyspace struct {
	Env    string
	Folder string
}

func NewKeyspace(env, universityName string) Keyspace {
	return Keyspace{Env: env, Folder: FolderName(universityName)}
}

// FolderName strips all whitespace from a display name and lower-cases it.
func FolderName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

// Key builds {env}/{folder}/{collection}/{college_id}/{suffix}. A college id only
// qualifies a collection; without one the key falls back to {env}/{folder}/{suffix}.
func (k Keyspace) Key(collection, collegeID, suffix string) string {
	if collection == "" {
		collegeID = ""
	}
	parts := make([]string, 0, 5)
	for _, p := range []string{k.Env, k.Folder, collection, collegeID, suffix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// IndexKey names the hash tracking every suffix written under a collection.
func (k Keyspace) IndexKey(collection, collegeID string) string {
	return k.Key(collection, collegeID, "_index")
}

func (k Keyspace) NotificationKey(recipient string) string {
	return k.Key("", "", recipient+notificationSuffix)
}
