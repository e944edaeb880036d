package rest

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/models"
	"github.com/dmitrijs2005/workflow/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

// forgotPasswordMessage is returned whether or not the email is registered.
const forgotPasswordMessage = "If the email exists, a reset token has been sent"

type validatable interface {
	Validate() error
}

// bind parses the JSON body into p and validates it before anything reaches
// the services.
func bind(c *fiber.Ctx, p validatable) error {
	if err := c.BodyParser(p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, msgBadBody)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

func (h *Handler) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "WorkFlow API", "status": "running"})
}

func (h *Handler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": h.store.State().String(),
		"strategy": h.store.Strategy(),
	})
}

func (h *Handler) signup(c *fiber.Ctx) error {
	p := new(SignupPayload)
	if err := bind(c, p); err != nil {
		return err
	}

	u, err := h.users.Signup(c.UserContext(), services.NewUser{
		FullName: p.FullName,
		Email:    p.Email,
		Password: p.Password,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "User created successfully", fiber.Map{"user_id": u.ID})
}

func (h *Handler) login(c *fiber.Ctx) error {
	p := new(LoginPayload)
	if err := bind(c, p); err != nil {
		return err
	}

	res, err := h.users.Login(c.UserContext(), p.Email, p.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
		}
		return err
	}
	return respond(c, fiber.StatusOK, "Login successful", fiber.Map{
		"token":      res.Token,
		"token_type": "bearer",
		"expires_in": int64(h.codec.TTL().Seconds()),
		"user":       res.User,
	})
}

// me answers from the token alone.
func (h *Handler) me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", fiber.Map{
		"user_id": p.SubjectID,
		"email":   p.Email,
		"role":    p.Role,
	})
}

func (h *Handler) forgotPassword(c *fiber.Ctx) error {
	p := new(ForgotPasswordPayload)
	if err := bind(c, p); err != nil {
		return err
	}
	if err := h.resets.RequestReset(c.UserContext(), p.Email); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, forgotPasswordMessage, nil)
}

func (h *Handler) resetPassword(c *fiber.Ctx) error {
	p := new(ResetPasswordPayload)
	if err := bind(c, p); err != nil {
		return err
	}
	if err := h.resets.ConsumeReset(c.UserContext(), p.Email, p.ResetToken, p.NewPassword); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		return err
	}
	return respond(c, fiber.StatusOK, "Password reset successfully", nil)
}

// verifyResetToken accepts email and token as a JSON body or as query
// parameters.
func (h *Handler) verifyResetToken(c *fiber.Ctx) error {
	p := new(VerifyResetTokenPayload)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(p); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, msgBadBody)
		}
	} else if err := c.QueryParser(p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, msgBadBody)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	ok, err := h.resets.VerifyOnly(c.UserContext(), p.Email, p.Token)
	switch {
	case ok:
		return c.JSON(fiber.Map{"valid": true, "message": "Token is valid"})
	case errors.Is(err, common.ErrResetTokenExpired):
		return c.JSON(fiber.Map{"valid": false, "message": msgExpiredReset})
	case errors.Is(err, common.ErrInvalidResetToken):
		return c.JSON(fiber.Map{"valid": false, "message": "Invalid reset token"})
	default:
		return err
	}
}

func (h *Handler) cleanupExpiredTokens(c *fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}
	n, err := h.resets.CleanupExpired(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fmt.Sprintf("Cleaned up %d expired tokens", n), fiber.Map{"deleted": n})
}

func (h *Handler) listUsers(c *fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}
	list, err := h.users.List(c.UserContext())
	if err != nil {
		return err
	}
	if list == nil {
		list = []*models.User{}
	}
	return respond(c, fiber.StatusOK, "", list)
}

func (h *Handler) createUser(c *fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}
	p := new(CreateUserPayload)
	if err := bind(c, p); err != nil {
		return err
	}

	u, err := h.users.CreateUser(c.UserContext(), services.NewUser{
		FullName: p.FullName,
		Email:    p.Email,
		Password: p.Password,
		Role:     p.Role,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "User created successfully", u)
}

// currentUser loads the live record, so it reflects role changes made after
// the token was issued.
func (h *Handler) currentUser(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	u, err := h.users.GetByID(c.UserContext(), p.SubjectID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", u)
}

// getUser lets employees read their own record and admins read any record.
func (h *Handler) getUser(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if id != p.SubjectID && !p.IsAdmin() {
		return common.ErrorForbidden
	}
	u, err := h.users.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", u)
}
