package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/quicktoolshq/quicktools/app/models"
	"github.com/quicktoolshq/quicktools/app/repository"
	"github.com/quicktoolshq/quicktools/internal/pkg/token"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignup registers a new account. Fresh accounts start with the free
// starter credit balance.
func HandleSignup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	user, err := models.CreateUser(strings.TrimSpace(req.Name), req.Email, req.Password)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return badRequest(c, "Invalid signup data: "+validationErrs.Error())
		}
		return badRequest(c, err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(req.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "An account with this email already exists"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, err)
	}

	if err := repo.Create(user); err != nil {
		// The pre-check above can race with a concurrent signup; the unique
		// index on email is the authority.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "An account with this email already exists"})
		}
		return respondError(c, err)
	}

	accessToken, err := token.CreateToken(user.ID, user.Email)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": accessToken,
		"user": fiber.Map{
			"id":              user.ID,
			"name":            user.Name,
			"email":           user.Email,
			"credits_balance": user.CreditsBalance,
		},
	})
}

// HandleLogin verifies credentials and issues an access token.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidCredentials(c)
		}
		return respondError(c, err)
	}

	if !user.CheckPassword(req.Password) {
		return invalidCredentials(c)
	}
	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account disabled"})
	}

	accessToken, err := token.CreateToken(user.ID, user.Email)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": accessToken,
		"user": fiber.Map{
			"id":              user.ID,
			"name":            user.Name,
			"email":           user.Email,
			"credits_balance": user.CreditsBalance,
		},
	})
}

func invalidCredentials(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid email or password"})
}
