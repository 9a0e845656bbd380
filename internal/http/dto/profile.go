package dto

type PromoteProfileRequest struct {
	Patch map[string]string `json:"patch" binding:"required"`
}

type ProfileResponse struct {
	UserID  string            `json:"user_id"`
	Profile map[string]string `json:"profile"`
}
