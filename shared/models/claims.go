package models

import "github.com/golang-jwt/jwt/v5"

// Claims представляет поля JWT, выдаваемого платформой аутентификации.
// Идентификатор пользователя передается в стандартном поле Subject.
type Claims struct {
	Email                string `json:"email,omitempty"`
	Role                 string `json:"role,omitempty"`
	jwt.RegisteredClaims        // Issuer, Subject, Audience, ExpiresAt, NotBefore, IssuedAt, ID (JTI)
}

// UserID возвращает идентификатор пользователя из токена.
func (c *Claims) UserID() string {
	return c.Subject
}
