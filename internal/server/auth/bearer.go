package auth

import (
	"strings"

	"github.com/dmitrijs2005/brainy/internal/common"
)

// ExtractBearer returns the token from an Authorization header value.
// A missing header, a different scheme or an empty token all yield
// common.ErrUnauthenticated.
func ExtractBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", common.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", common.ErrUnauthenticated
	}
	return token, nil
}
