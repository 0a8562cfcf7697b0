package models

import "apicore/internal/domain"

// User is an account. PasswordHash never leaves the server.
type User struct {
	domain.Record
	Email        string    `json:"email" gorm:"column:email"`
	Name         string    `json:"name" gorm:"column:name"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	Projects     []Project `json:"projects,omitempty" gorm:"foreignKey:OwnerID"`
}

// CreateUserInput is the body of user creation and registration.
type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email,max=191"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// UpdateUserInput carries only the fields present in the request.
type UpdateUserInput struct {
	Email    *string `json:"email" validate:"omitempty,email,max=191"`
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
