package rest

import (
	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/services"
	validation "github.com/go-ozzo/ozzo-validation"
)

type SignupPayload struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p SignupPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, services.EmailRules...),
		validation.Field(&p.Password, services.PasswordRules...),
	)
}

// CreateUserPayload is the admin variant of signup with a selectable role.
type CreateUserPayload struct {
	SignupPayload
	Role string `json:"role"`
}

func (p CreateUserPayload) Validate() error {
	if err := p.SignupPayload.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Role, validation.In(common.RoleAdmin, common.RoleEmployee)),
	)
}

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, services.EmailRules...),
		validation.Field(&p.Password, validation.Required),
	)
}

type ForgotPasswordPayload struct {
	Email string `json:"email"`
}

func (p ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, services.EmailRules...),
	)
}

type ResetPasswordPayload struct {
	Email       string `json:"email"`
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

func (p ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, services.EmailRules...),
		validation.Field(&p.ResetToken, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.NewPassword, services.PasswordRules...),
	)
}

type VerifyResetTokenPayload struct {
	Email string `json:"email" query:"email"`
	Token string `json:"token" query:"token"`
}

func (p VerifyResetTokenPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, services.EmailRules...),
		validation.Field(&p.Token, validation.Required, validation.Length(1, 128)),
	)
}
