package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// participant roles carried in the token
const (
	RoleVisitor  = "visitor"
	RoleOperator = "operator"
)

// represents JWT claims
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}
