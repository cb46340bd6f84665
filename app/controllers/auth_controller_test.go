package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signupApp() *fiber.App {
	app := fiber.New()
	app.Post("/auth/signup", HandleSignup)
	return app
}

func signupRequest(email string) *http.Request {
	body := `{"name":"Dana","email":"` + email + `","password":"s3cret-password"}`
	req := httptest.NewRequest("POST", "/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSignupDuplicateEmailConflict(t *testing.T) {
	newHandlerFixture(t)
	app := signupApp()

	resp, err := app.Test(signupRequest("dana@example.com"), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(signupRequest("dana@example.com"), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, resp.Body))
}

func TestSignupUniqueIndexRaceMapsToConflict(t *testing.T) {
	f := newHandlerFixture(t)
	app := signupApp()

	// Simulate losing the race against a concurrent signup: the pre-check
	// sees no account, but the insert hits the unique index on email.
	f.users.duplicateOnCreate = true

	resp, err := app.Test(signupRequest("raced@example.com"), 10000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errorCode(t, resp.Body))
}
