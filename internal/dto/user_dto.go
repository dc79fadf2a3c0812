package dto

import (
	"time"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// UserCreateRequest describes the payload for provisioning an account.
type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=admin student"`
	Status   string `json:"status" validate:"omitempty,oneof=active disabled"`
}

// UserUpdateRequest allows admins to patch mutable profile fields.
type UserUpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin student"`
	Status   *string `json:"status" validate:"omitempty,oneof=active disabled"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

// UserListRequest defines filters for listing users.
type UserListRequest struct {
	Page     int
	PageSize int
	Search   string
	Role     string
	Status   string
}

// UserResponse serializes an account for admin endpoints.
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserListResponse wraps a paginated user listing.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Role:      user.Role,
		Status:    user.Status,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
