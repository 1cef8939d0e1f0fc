package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeAccess TokenType = "access"

// Operator roles. Viewers may read call history; operators may also manage
// numbers and bindings.
const (
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Claims are the only supported JWT claims shape for this service.
// OperatorID and Role must be present on every access token.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID string    `json:"operator_id"`
	Role       string    `json:"role"`
	TokenType  TokenType `json:"token_type"`
}
