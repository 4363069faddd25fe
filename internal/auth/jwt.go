// Package auth issues and validates bearer tokens for the agent query API.
// Tokens are read-only by construction: the API they guard exposes no write
// routes, and the scope claim is checked anyway so a token minted for some
// other audience cannot be replayed here.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const ScopeAgentRead = "agent:read"

// GenerateAgentToken mints a token for the downstream agent collaborator.
func GenerateAgentToken(secret, agentName string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is not configured")
	}
	claims := jwt.MapClaims{
		"sub":   agentName,
		"scope": ScopeAgentRead,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAgentToken checks signature, expiry, and the read-only scope, and
// returns the agent name the token was minted for.
func ValidateAgentToken(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if scope, _ := claims["scope"].(string); scope != ScopeAgentRead {
		return "", fmt.Errorf("token lacks %s scope", ScopeAgentRead)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}
