package models

import "apicore/internal/domain"

type Project struct {
	domain.Record
	Name        string  `json:"name" gorm:"column:name"`
	Description *string `json:"description" gorm:"column:description"`
	OwnerID     string  `json:"ownerId" gorm:"column:owner_id"`
	Owner       *User   `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}

type CreateProjectInput struct {
	Name        string  `json:"name" validate:"required,max=160"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	OwnerID     string  `json:"ownerId" validate:"omitempty,uuid4"`
}

type UpdateProjectInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=160"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}
