/**
 * @description
 * This file implements token issuing and parsing for the bank simulator. Access
 * and refresh tokens are HS256 JWTs carrying the account id in the 'sub' claim.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: JWT creation and validation.
 */

package app

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenIssuer creates and validates the bank's account-scoped JWTs.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer creates a token issuer with the given signing secret and TTLs.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 14 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (t *TokenIssuer) issue(accountID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  accountID.String(),
		"type": tokenType,
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// IssueAccess creates a new access token for an account.
func (t *TokenIssuer) IssueAccess(accountID uuid.UUID) (string, error) {
	return t.issue(accountID, tokenTypeAccess, t.accessTTL)
}

// IssueRefresh creates a new refresh token for an account.
func (t *TokenIssuer) IssueRefresh(accountID uuid.UUID) (string, error) {
	return t.issue(accountID, tokenTypeRefresh, t.refreshTTL)
}

// parse validates a token of the expected type and returns the account id.
func (t *TokenIssuer) parse(tokenString, expectedType string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	if tokenType, _ := claims["type"].(string); tokenType != expectedType {
		return uuid.Nil, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return accountID, nil
}

// ParseAccess validates an access token and returns its account id.
func (t *TokenIssuer) ParseAccess(tokenString string) (uuid.UUID, error) {
	return t.parse(tokenString, tokenTypeAccess)
}

// ParseRefresh validates a refresh token and returns its account id.
func (t *TokenIssuer) ParseRefresh(tokenString string) (uuid.UUID, error) {
	return t.parse(tokenString, tokenTypeRefresh)
}
