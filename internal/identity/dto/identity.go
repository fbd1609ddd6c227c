package dto

type SetIdentityRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"omitempty,email"`
}
