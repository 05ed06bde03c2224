package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wove-server/internal/models"
)

func TestIsAgeTierSufficient(t *testing.T) {
	t.Run("Higher tiers see lower-tier content", func(t *testing.T) {
		assert.True(t, models.IsAgeTierSufficient(models.AgeTierAdults, models.AgeTierKids))
		assert.True(t, models.IsAgeTierSufficient(models.AgeTierTeens, models.AgeTierTeens))
		assert.True(t, models.IsAgeTierSufficient(models.AgeTierKids, models.AgeTierUnverified))
	})

	t.Run("Lower tiers are blocked from higher-tier content", func(t *testing.T) {
		assert.False(t, models.IsAgeTierSufficient(models.AgeTierKids, models.AgeTierTeens))
		assert.False(t, models.IsAgeTierSufficient(models.AgeTierUnverified, models.AgeTierKids))
	})

	t.Run("Unknown tiers never grant access", func(t *testing.T) {
		assert.False(t, models.IsAgeTierSufficient(models.AgeTier("alien"), models.AgeTierKids))
		assert.False(t, models.IsAgeTierSufficient(models.AgeTierAdults, models.AgeTier("alien")))
	})
}

func TestIsModerator(t *testing.T) {
	assert.False(t, (&models.User{Roles: []string{models.UserRoleUser}}).IsModerator())
	assert.True(t, (&models.User{Roles: []string{models.UserRoleModerator}}).IsModerator())
	assert.True(t, (&models.User{Roles: []string{models.UserRoleAdmin}}).IsModerator())
	assert.True(t, (&models.User{Roles: []string{models.UserRoleSuperAdmin}}).IsModerator())
}

func TestStoryStatusIsWritable(t *testing.T) {
	writable := []models.StoryStatus{
		models.StoryStatusDraft,
		models.StoryStatusInProgress,
		models.StoryStatusPendingApproval,
		models.StoryStatusPublished,
	}
	for _, st := range writable {
		assert.True(t, st.IsWritable(), "status %q", st)
	}
	assert.False(t, models.StoryStatusCompleted.IsWritable())
	assert.False(t, models.StoryStatusArchived.IsWritable())
}
