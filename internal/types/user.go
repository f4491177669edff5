package types

type UserResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Institution string `json:"institution,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
}
