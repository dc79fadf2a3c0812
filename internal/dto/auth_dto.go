package dto

import "github.com/noah-isme/qr-attendance-api/internal/models"

// LoginRequest is the credential payload accepted by the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// ProfileResponse is the public view of an authenticated identity.
type ProfileResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}

// LoginResult bundles the profile with the issued token.
type LoginResult struct {
	Profile   ProfileResponse
	Token     string
	ExpiresIn int64
}

// NewProfileResponse converts a user into its public profile.
func NewProfileResponse(user models.User) ProfileResponse {
	return ProfileResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		Name:     user.Name,
	}
}
