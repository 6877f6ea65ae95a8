package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
)

func TestGetByAPIKeyHash(t *testing.T) {
	env := newTestEnv(t)

	hash := models.HashAPIKey("yk_live_secret")
	require.NoError(t, env.db.Model(env.claimant).Update("api_key_hash", hash).Error)

	found, err := env.repos.User.GetByAPIKeyHash(hash)
	require.NoError(t, err)
	assert.Equal(t, env.claimant.ID, found.ID)

	_, err = env.repos.User.GetByAPIKeyHash(models.HashAPIKey("yk_live_other"))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetByAPIKeyHashRejectsEmptyHash(t *testing.T) {
	env := newTestEnv(t)

	// users without an API key have an empty hash column; an empty
	// lookup must never match them
	_, err := env.repos.User.GetByAPIKeyHash("")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = env.repos.User.GetByAPIKeyHash("   ")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetByEmail(t *testing.T) {
	env := newTestEnv(t)

	found, err := env.repos.User.GetByEmail(env.moderator.Email)
	require.NoError(t, err)
	assert.Equal(t, env.moderator.ID, found.ID)
	assert.True(t, found.IsModerator())
}
