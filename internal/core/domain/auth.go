package domain

// AuthContext contains authenticated user info for request context
type AuthContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// IsAdmin checks if the authenticated user is a system admin.
// System admins see service statistics; folder access still follows grants.
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// ToAuthContext converts validated claims into a request identity
func (c *TokenClaims) ToAuthContext() *AuthContext {
	role := c.Role
	if role == "" {
		role = RoleMember
	}
	return &AuthContext{
		UserID: c.UserID,
		Email:  c.Email,
		Name:   c.Name,
		Role:   role,
	}
}
