package common

// AuthorizationHeaderName is the HTTP header carrying the access token.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"

// Token sizes in random bytes. Hex encoding doubles the string length.
const (
	RefreshTokenBytes = 64
	ResetTokenBytes   = 32
)

// MinPasswordLength is the shortest password accepted on register, reset and change.
const MinPasswordLength = 6

// User statuses.
const (
	UserStatusActive = "active"
	UserStatusLocked = "locked"
)
