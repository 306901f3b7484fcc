package auth

import "strings"

// AuthorizationHeader carries the bearer credential. It is optional.
const AuthorizationHeader = "Authorization"

const bearerScheme = "bearer "

// CredentialFromHeader extracts the token from an authorization header value.
// Both a bare token and "Bearer <token>" are accepted. A blank header yields
// "" (anonymous). A scheme with no token is returned as-is so that it fails
// verification rather than passing as anonymous.
func CredentialFromHeader(header string) string {
	raw := strings.TrimSpace(header)
	if len(raw) > len(bearerScheme) && strings.EqualFold(raw[:len(bearerScheme)], bearerScheme) {
		if tok := strings.TrimSpace(raw[len(bearerScheme):]); tok != "" {
			return tok
		}
	}
	return raw
}
