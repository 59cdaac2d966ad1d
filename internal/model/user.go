package model

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleDonor UserRole = "donor"
)

type User struct {
	Base
	Name         string   `db:"name" json:"name"`
	Email        string   `db:"email" json:"email"`
	PasswordHash string   `db:"password_hash" json:"-"`
	Role         UserRole `db:"role" json:"role"`
	Phone        *string  `db:"phone" json:"phone,omitempty"`
}

type RegisterRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Phone      string `json:"phone"`
	BloodGroup string `json:"blood_group" binding:"required,bloodgroup"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
