package rest

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/gofiber/fiber/v2"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{Success: true, Message: message, Data: data})
}

func fail(c *fiber.Ctx, status int, detail string) error {
	return c.Status(status).JSON(errorBody{Success: false, Detail: detail})
}

// Client-facing messages. Authentication failures share one text so the
// response never says which check failed.
const (
	msgUnauthenticated  = "Could not validate credentials"
	msgForbidden        = "Not enough permissions"
	msgNotFound         = "Not found"
	msgStoreUnavailable = "Database is not available"
	msgAlreadyExists    = "Email already registered"
	msgInvalidReset     = "Invalid or expired reset token"
	msgExpiredReset     = "Reset token has expired"
	msgInternal         = "Internal server error"
	msgBadBody          = "Invalid request body"
)

// classify maps an error kind to its HTTP status and client message.
func classify(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case common.IsAuthenticationError(err):
		return fiber.StatusUnauthorized, msgUnauthenticated
	case errors.Is(err, common.ErrorForbidden):
		return fiber.StatusForbidden, msgForbidden
	case errors.Is(err, common.ErrorNotFound):
		return fiber.StatusNotFound, msgNotFound
	case errors.Is(err, common.ErrorStoreUnavailable):
		return fiber.StatusServiceUnavailable, msgStoreUnavailable
	case errors.Is(err, common.ErrorValidation):
		return fiber.StatusBadRequest, validationDetail(err)
	case errors.Is(err, common.ErrorAlreadyExists):
		return fiber.StatusBadRequest, msgAlreadyExists
	case errors.Is(err, common.ErrResetTokenExpired):
		return fiber.StatusBadRequest, msgExpiredReset
	case errors.Is(err, common.ErrInvalidResetToken):
		return fiber.StatusBadRequest, msgInvalidReset
	default:
		return fiber.StatusInternalServerError, msgInternal
	}
}

func validationDetail(err error) string {
	msg := strings.TrimPrefix(err.Error(), common.ErrorValidation.Error()+": ")
	if msg == "" {
		return common.ErrorValidation.Error()
	}
	return msg
}

func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	status, detail := classify(err)
	if status >= fiber.StatusInternalServerError && status != fiber.StatusServiceUnavailable {
		h.logger.Error(c.UserContext(), "request failed",
			"method", c.Method(), "path", c.Path(), "error", err)
	}
	return fail(c, status, detail)
}
