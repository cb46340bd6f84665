package controllers

import (
	"errors"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
)

func apiKeyApp(userID uint) *fiber.App {
	return newAuthedApp(userID, func(app *fiber.App) {
		app.Delete("/me/api-keys/:id", HandleRevokeAPIKey)
	})
}

func TestRevokeAPIKeyHardDeletes(t *testing.T) {
	f := newHandlerFixture(t)
	user := f.seedUser(t, "dev@example.com", 10, true)

	key, _, err := models.NewAPIKey(user.ID, "ci")
	require.NoError(t, err)
	require.NoError(t, f.keys.Create(key))

	app := apiKeyApp(user.ID)
	resp, err := app.Test(httptest.NewRequest("DELETE", "/me/api-keys/"+strconv.Itoa(int(key.ID)), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Revocation removes the row entirely, it does not just deactivate.
	_, err = f.keys.GetByID(user.ID, key.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	keys, err := f.keys.ListByUserID(user.ID)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Revoking again reports the key gone.
	resp, err = app.Test(httptest.NewRequest("DELETE", "/me/api-keys/"+strconv.Itoa(int(key.ID)), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRevokeAPIKeyIsScopedToOwner(t *testing.T) {
	f := newHandlerFixture(t)
	owner := f.seedUser(t, "owner@example.com", 10, true)
	intruder := f.seedUser(t, "intruder@example.com", 10, true)

	key, _, err := models.NewAPIKey(owner.ID, "ci")
	require.NoError(t, err)
	require.NoError(t, f.keys.Create(key))

	resp, err := apiKeyApp(intruder.ID).Test(httptest.NewRequest("DELETE", "/me/api-keys/"+strconv.Itoa(int(key.ID)), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	_, err = f.keys.GetByID(owner.ID, key.ID)
	assert.NoError(t, err)
}
