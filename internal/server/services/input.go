package services

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/workflow/internal/common"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Password length bounds. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// PasswordRules validate a new plaintext password.
var PasswordRules = []validation.Rule{
	validation.Required,
	validation.Length(MinPasswordLength, MaxPasswordLength),
}

// EmailRules validate an email address.
var EmailRules = []validation.Rule{
	validation.Required,
	validation.Length(3, 254),
	is.Email,
}

// NewUser is the input for creating a user record.
type NewUser struct {
	FullName string
	Email    string
	Password string
	Role     string
}

func (u *NewUser) normalize() {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Email = strings.TrimSpace(u.Email)
	if u.Role == "" {
		u.Role = common.RoleEmployee
	}
}

func (u NewUser) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&u.Email, EmailRules...),
		validation.Field(&u.Password, PasswordRules...),
		validation.Field(&u.Role, validation.Required, validation.In(common.RoleAdmin, common.RoleEmployee)),
	)
}

// invalid tags err as a validation failure while keeping its message.
func invalid(err error) error {
	return fmt.Errorf("%w: %v", common.ErrorValidation, err)
}
