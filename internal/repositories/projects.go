package repositories

import (
	"apicore/internal/domain/models"

	"gorm.io/gorm"
)

var projectColumns = []string{"name", "description", "owner_id"}

var ProjectSearchColumns = []string{"name", "description"}

// NewProjectModel binds projects through gorm; "owner" preloads the owner.
func NewProjectModel(gdb *gorm.DB) *GormModel[models.Project] {
	return NewGormModel[models.Project](gdb, "projects", projectColumns, map[string]string{"owner": "Owner"})
}

type ProjectRepository struct {
	*Repository[models.Project]
}
