package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	"apicore/internal/domain/models"
	"apicore/internal/metrics"

	"gorm.io/gorm"
)

var userColumns = []string{"email", "name", "password_hash", "role"}

// UserSearchColumns are matched by the users search endpoint.
var UserSearchColumns = []string{"email", "name"}

// NewUserTable binds users with plain SQL. When projects is set the
// "projects" include loads each user's live projects on the same handle.
func NewUserTable(projects ModelBinding[models.Project]) *Table[models.User] {
	t := NewTable("users", userColumns, func(u *models.User) map[string]any {
		return map[string]any{
			ColID:           &u.ID,
			ColCreatedAt:    &u.CreatedAt,
			ColUpdatedAt:    &u.UpdatedAt,
			ColDeletedAt:    &u.DeletedAt,
			"email":         &u.Email,
			"name":          &u.Name,
			"password_hash": &u.PasswordHash,
			"role":          &u.Role,
		}
	})
	if projects != nil {
		t.Relations["projects"] = func(ctx context.Context, db DBTX, users []*models.User) error {
			ids := make([]string, len(users))
			byID := make(map[string]*models.User, len(users))
			for i, u := range users {
				ids[i] = u.ID
				byID[u.ID] = u
				u.Projects = []models.Project{}
			}
			owned, err := projects.FindMany(ctx, db, Query{
				Where:   Where{Fields: Filter{"owner_id": ids}},
				OrderBy: []Order{{Column: ColCreatedAt, Desc: true}},
			})
			if err != nil {
				return err
			}
			for _, p := range owned {
				if u, ok := byID[p.OwnerID]; ok {
					u.Projects = append(u.Projects, p)
				}
			}
			return nil
		}
	}
	return t
}

type UserRepository struct {
	*Repository[models.User]
	Projects *ProjectRepository
}

// FindByEmail returns the live user with email, or nil.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.FindOne(ctx, Filter{"email": email})
}

// DeleteWithProjects soft-deletes a user and every live project they own in
// one transaction.
func (r *UserRepository) DeleteWithProjects(ctx context.Context, id string) (*models.User, error) {
	var deleted *models.User
	err := r.ExecuteInTransaction(ctx, func(tx DBTX) error {
		u, err := r.WithTx(tx).Delete(ctx, id, true)
		if err != nil {
			return err
		}
		if _, err := r.Projects.WithTx(tx).DeleteMany(ctx, Filter{"owner_id": id}, true); err != nil {
			return err
		}
		deleted = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Stores wires the entity repositories over one connection pool.
type Stores struct {
	Users    *UserRepository
	Projects *ProjectRepository
}

func NewStores(db *sql.DB, gdb *gorm.DB, logger *slog.Logger, m *metrics.Metrics) Stores {
	runner := SQLStore{DB: db}

	projectBinding := NewProjectModel(gdb)
	projects := &ProjectRepository{Repository: NewRepository[models.Project](projectBinding, db, runner, logger)}
	projects.Metrics = m
	projects.SortColumns["name"] = "name"

	users := &UserRepository{
		Repository: NewRepository[models.User](NewUserTable(projectBinding), db, runner, logger),
		Projects:   projects,
	}
	users.Metrics = m
	users.SortColumns["name"] = "name"
	users.SortColumns["email"] = "email"

	return Stores{Users: users, Projects: projects}
}
