package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyspaceKey(t *testing.T) {
	ks := NewKeyspace("prod", "Example University")

	tests := []struct {
		name       string
		collection string
		collegeID  string
		suffix     string
		want       string
	}{
		{"collection only", "role_features", "", "64ab12", "prod/exampleuniversity/role_features/64ab12"},
		{"collection and college", "college_screens", "c1", "admin_dashboard", "prod/exampleuniversity/college_screens/c1/admin_dashboard"},
		{"bare", "", "", "u1_notifications", "prod/exampleuniversity/u1_notifications"},
		{"college without collection", "", "c1", "u1_notifications", "prod/exampleuniversity/u1_notifications"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ks.Key(tt.collection, tt.collegeID, tt.suffix))
		})
	}
}

func TestFolderName(t *testing.T) {
	assert.Equal(t, "exampleuniversity", FolderName(" Example\tUniversity\n"))
	assert.Equal(t, "abc", FolderName("A B C"))
	assert.Empty(t, FolderName("   "))
}

func TestNotificationKey(t *testing.T) {
	ks := Keyspace{Env: "dev", Folder: "demo"}
	assert.Equal(t, "dev/demo/counselor-7_notifications", ks.NotificationKey("counselor-7"))
	assert.Equal(t, "dev/demo/role_features/_index", ks.IndexKey("role_features", ""))
}
