package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/mpereira/finledger/internal/common"
	"github.com/mpereira/finledger/internal/server/models"
	"github.com/mpereira/finledger/internal/server/services"
)

type createTransactionRequest struct {
	Amount        decimal.Decimal        `json:"amount"`
	Description   string                 `json:"description"`
	Type          models.TransactionType `json:"type" validate:"required"`
	RecurrenceDay *int                   `json:"recurrenceDay"`
}

type patchTransactionRequest struct {
	Amount        *decimal.Decimal        `json:"amount"`
	Description   *string                 `json:"description"`
	Type          *models.TransactionType `json:"type"`
	RecurrenceDay *int                    `json:"recurrenceDay"`
}

func (s *Server) handleCreateTransaction(c *fiber.Ctx) error {
	identity, err := identityFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	var req createTransactionRequest
	if err := s.parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	in := services.TransactionInput{
		Amount:        req.Amount,
		Description:   req.Description,
		Type:          req.Type,
		RecurrenceDay: req.RecurrenceDay,
	}
	tx, err := s.ledger.Create(c.Context(), identity.UserID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tx)
}

// handleListTransactions returns the caller's whole ledger together with its
// all-time balance.
func (s *Server) handleListTransactions(c *fiber.Ctx) error {
	identity, err := identityFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	entries, err := s.ledger.ListForOwner(c.Context(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}
	report, err := s.ledger.Balance(c.Context(), identity.UserID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"transactions": entries,
		"balance":      report,
	})
}

// handleBalance returns one calendar month of the caller's ledger with its
// balance.
func (s *Server) handleBalance(c *fiber.Ctx) error {
	identity, err := identityFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	year := c.QueryInt("year")
	month := c.QueryInt("month")

	entries, err := s.ledger.ListByMonth(c.Context(), identity.UserID, year, month)
	if err != nil {
		return writeError(c, err)
	}
	report, err := s.ledger.BalanceByMonth(c.Context(), identity.UserID, year, month)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"transactions": entries,
		"balance":      report,
	})
}

// handleFixDay lists the caller's entries for one exact calendar day. Plain
// entries match by creation date, fixed-expense entries by recurrence day.
func (s *Server) handleFixDay(c *fiber.Ctx) error {
	identity, err := identityFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	day := c.QueryInt("day")
	month := c.QueryInt("month")
	year := c.QueryInt("year")

	entries, err := s.ledger.ListByExactDay(c.Context(), identity.UserID, day, month, year)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(entries)
}

// handleGetTransaction returns one entry. Administrators may read any entry;
// everyone else sees only their own, a foreign id reads as absent.
func (s *Server) handleGetTransaction(c *fiber.Ctx) error {
	identity, err := identityFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	tx, err := s.ledger.FindByID(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	if identity.Role != models.RoleAdmin && tx.OwnerID != identity.UserID {
		return writeError(c, common.ErrNotFound)
	}
	return c.JSON(tx)
}

func (s *Server) handleUpdateTransaction(c *fiber.Ctx) error {
	identity, err := identityFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	var req patchTransactionRequest
	if err := s.parseBody(c, &req); err != nil {
		return writeError(c, err)
	}

	patch := services.TransactionPatch{
		Amount:        req.Amount,
		Description:   req.Description,
		Type:          req.Type,
		RecurrenceDay: req.RecurrenceDay,
	}
	tx, err := s.ledger.Update(c.Context(), c.Params("id"), identity.UserID, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(tx)
}

func (s *Server) handleDeleteTransaction(c *fiber.Ctx) error {
	identity, err := identityFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	if err := s.ledger.Delete(c.Context(), c.Params("id"), identity.UserID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSearchByName(c *fiber.Ctx) error {
	groups, err := s.ledger.SearchByOwnerName(c.Context(), c.Query("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(groups)
}
