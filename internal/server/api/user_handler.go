package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mpereira/finledger/internal/server/models"
	"github.com/mpereira/finledger/internal/server/services"
)

type createUserRequest struct {
	Name     string      `json:"name" validate:"required,min=2"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     models.Role `json:"role" validate:"required"`
}

type replaceUserRequest struct {
	Name     string      `json:"name" validate:"required,min=2"`
	Email    string      `json:"email" validate:"required,email"`
	Password *string     `json:"password" validate:"omitempty,min=6"`
	Role     models.Role `json:"role" validate:"required"`
}

type patchUserRequest struct {
	Name     *string      `json:"name" validate:"omitempty,min=2"`
	Email    *string      `json:"email" validate:"omitempty,email"`
	Password *string      `json:"password" validate:"omitempty,min=6"`
	Role     *models.Role `json:"role"`
}

// patchMeRequest is the self-service profile update. Role is deliberately
// absent.
type patchMeRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
}

func (s *Server) handleCreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := s.parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	user, err := s.users.Create(c.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (s *Server) handleGetUser(c *fiber.Ctx) error {
	user, err := s.users.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(user)
}

func (s *Server) handleReplaceUser(c *fiber.Ctx) error {
	var req replaceUserRequest
	if err := s.parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	patch := services.UserPatch{Name: &req.Name, Email: &req.Email, Password: req.Password, Role: &req.Role}
	user, err := s.users.Patch(c.Context(), c.Params("id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(user)
}

func (s *Server) handlePatchUser(c *fiber.Ctx) error {
	var req patchUserRequest
	if err := s.parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	patch := services.UserPatch{Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role}
	user, err := s.users.Patch(c.Context(), c.Params("id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(user)
}

func (s *Server) handlePatchMe(c *fiber.Ctx) error {
	identity, err := identityFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	var req patchMeRequest
	if err := s.parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	patch := services.UserPatch{Name: req.Name, Email: req.Email, Password: req.Password}
	user, err := s.users.Patch(c.Context(), identity.UserID, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(user)
}

func (s *Server) handleDeleteUser(c *fiber.Ctx) error {
	if err := s.users.Deactivate(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
