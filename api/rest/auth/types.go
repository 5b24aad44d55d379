package auth

// GuestTokenRequest for anonymous visitors opening a support chat
type GuestTokenRequest struct {
	DisplayName string `json:"display_name" binding:"max=100"`
}

// TokenResponse carries an issued relay credential
type TokenResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}
