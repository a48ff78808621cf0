package models_test

import (
	"civicdesk/backend/internal/models"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestUserBeforeCreate_NormalizesEmail verifies the hook lowercases and trims the email.
func TestUserBeforeCreate_NormalizesEmail(t *testing.T) {
	user := &models.User{Name: "  Raj ", Email: "  Raj@Example.COM ", Role: models.RoleWorker}

	err := user.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	assert.Equal(t, "raj@example.com", user.Email)
	assert.Equal(t, "Raj", user.Name)
}

func TestRoleValid(t *testing.T) {
	tests := []struct {
		role  models.Role
		valid bool
	}{
		{models.RoleCitizen, true},
		{models.RoleAdmin, true},
		{models.RoleWorker, true},
		{"", false},
		{"superuser", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.role.Valid())
		})
	}
}

func TestParseComplaintStatus(t *testing.T) {
	st, ok := models.ParseComplaintStatus("In Progress")
	assert.True(t, ok)
	assert.Equal(t, models.StatusInProgress, st)

	_, ok = models.ParseComplaintStatus("in progress")
	assert.False(t, ok, "status names are case sensitive")

	_, ok = models.ParseComplaintStatus("Closed")
	assert.False(t, ok)
}

// TestUserStructTags catches accidental tag removal during refactoring.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	emailField, found := userType.FieldByName("Email")
	assert.True(t, found)
	assert.Contains(t, emailField.Tag.Get("gorm"), "uniqueIndex", "Email should be unique")

	pwField, found := userType.FieldByName("PasswordHash")
	assert.True(t, found)
	assert.Equal(t, "-", pwField.Tag.Get("json"), "password hash must never be serialized")

}

func TestRoleList_ArrayEncoding(t *testing.T) {
	v, err := models.RoleList{"citizen", "worker"}.Value()
	assert.NoError(t, err)
	assert.Equal(t, `{"citizen","worker"}`, v)

	var back models.RoleList
	assert.NoError(t, back.Scan("{citizen,worker}"))
	assert.Equal(t, models.RoleList{"citizen", "worker"}, back)
}

func TestNewNotification_Recipients(t *testing.T) {
	broadcast := models.NewNotification(models.ToRole(models.RoleAdmin), "hello")
	assert.Nil(t, broadcast.UserID)
	assert.Equal(t, models.RoleAdmin, broadcast.UserRole)
	assert.Equal(t, "admin", broadcast.UserName)

	direct := models.NewNotification(models.ToUser(models.RoleWorker, 7, "Raj"), "task")
	if assert.NotNil(t, direct.UserID) {
		assert.Equal(t, uint(7), *direct.UserID)
	}
	assert.Equal(t, "Raj", direct.UserName)
}

func TestAnnouncementVisibleTo(t *testing.T) {
	defaults := &models.Announcement{}
	assert.True(t, defaults.VisibleTo(models.RoleCitizen))
	assert.False(t, defaults.VisibleTo(models.RoleWorker))

	both := &models.Announcement{Audience: models.RoleList{"citizen", "worker"}}
	assert.True(t, both.VisibleTo(models.RoleWorker))
	assert.False(t, both.VisibleTo(models.RoleAdmin))
}
