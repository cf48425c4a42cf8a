package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/mpereira/finledger/internal/common"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: cannot parse body", common.ErrValidation)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", common.ErrValidation, err.Error())
	}
	return nil
}

func (s *Server) handleSignup(c *fiber.Ctx) error {
	var req signupRequest
	if err := s.parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	user, err := s.users.Register(c.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := s.parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	token, user, err := s.users.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}

	setAuthCookie(c, token, s.cfg.AccessTokenValidity, s.cfg.CookieSecure)
	return c.JSON(fiber.Map{
		"accessToken": token,
		"user":        user,
	})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	clearAuthCookie(c, s.cfg.CookieSecure)
	return c.JSON(fiber.Map{"message": "logged out"})
}
