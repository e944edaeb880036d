package common

// AuthorizationHeaderName is the HTTP header (and gRPC metadata key, lower-cased)
// carrying the session token.
const AuthorizationHeaderName = "Authorization"

// BearerScheme prefixes the token inside the authorization header.
const BearerScheme = "Bearer"

// Roles known to the server.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// StatusActive is the status assigned to newly created users.
const StatusActive = "active"

// ResetTokenAlphabet is the 62-symbol alphabet reset tokens are drawn from.
const ResetTokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ResetTokenLength gives ~190 bits of entropy with ResetTokenAlphabet.
const ResetTokenLength = 32
