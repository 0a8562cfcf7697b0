package handlers

import (
	"context"
	"strings"

	"apicore/internal/domain"
	"apicore/internal/domain/models"
	"apicore/internal/http/middleware"
	"apicore/internal/query"
	"apicore/internal/repositories"
	"apicore/internal/services"
)

// Users serves the user administration endpoints.
type Users struct {
	Repo    *repositories.UserRepository
	Search  query.SearchNormalizer
	Cost    int
	Reports services.UserReport
}

var userFilters = map[string]string{"role": "role"}

// List paginates live users. Supports search over email and name and
// filter[role].
func (h Users) List(ctx context.Context, req *middleware.Request) (any, error) {
	opts, err := h.Search.NormalizeValues(req.Query)
	if err != nil {
		return nil, err
	}
	opts.Filters = columnFilters(opts.Filters, userFilters)
	return h.Repo.Search(ctx, opts, repositories.UserSearchColumns)
}

func (h Users) Get(ctx context.Context, req *middleware.Request) (any, error) {
	id, err := query.ParseUUID("id", req.Param("id"), 4, false)
	if err != nil {
		return nil, err
	}
	var opts repositories.FindOptions
	if includes(req, "projects") {
		opts.Include = []string{"projects"}
	}
	user, err := h.Repo.FindByID(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound("User", id)
	}
	return user, nil
}

// Report exports a user and their projects as a PDF. Non-admins may only
// export themselves.
func (h Users) Report(ctx context.Context, req *middleware.Request) (any, error) {
	id, err := query.ParseUUID("id", req.Param("id"), 4, false)
	if err != nil {
		return nil, err
	}
	if req.Role != "admin" && req.Context.UserID != id {
		return nil, domain.InsufficientPermissions("admin")
	}
	user, err := h.Repo.FindByID(ctx, id, repositories.FindOptions{Include: []string{"projects"}})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound("User", id)
	}
	return h.Reports.Render(user)
}

func (h Users) Create(ctx context.Context, req *middleware.Request) (any, error) {
	var in models.CreateUserInput
	if err := req.Bind(&in); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password, h.Cost)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = "user"
	}
	return h.Repo.Create(ctx, repositories.Values{
		"email":         normalizeEmail(in.Email),
		"name":          strings.TrimSpace(in.Name),
		"password_hash": hash,
		"role":          role,
	})
}

func (h Users) Update(ctx context.Context, req *middleware.Request) (any, error) {
	id, err := query.ParseUUID("id", req.Param("id"), 4, false)
	if err != nil {
		return nil, err
	}
	var in models.UpdateUserInput
	if err := req.Bind(&in); err != nil {
		return nil, err
	}
	values := repositories.Values{}
	if in.Email != nil {
		values["email"] = normalizeEmail(*in.Email)
	}
	if in.Name != nil {
		values["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil {
		values["role"] = *in.Role
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password, h.Cost)
		if err != nil {
			return nil, err
		}
		values["password_hash"] = hash
	}
	if len(values) == 0 {
		return nil, domain.BadRequest(domain.CodeValidationFailed, "No fields to update", nil)
	}
	return h.Repo.Update(ctx, id, values)
}

// Delete soft-deletes the user together with their projects.
func (h Users) Delete(ctx context.Context, req *middleware.Request) (any, error) {
	id, err := query.ParseUUID("id", req.Param("id"), 4, false)
	if err != nil {
		return nil, err
	}
	return h.Repo.DeleteWithProjects(ctx, id)
}

func (h Users) Restore(ctx context.Context, req *middleware.Request) (any, error) {
	id, err := query.ParseUUID("id", req.Param("id"), 4, false)
	if err != nil {
		return nil, err
	}
	return h.Repo.Restore(ctx, id)
}

// Deleted lists soft-deleted users, newest first.
func (h Users) Deleted(ctx context.Context, req *middleware.Request) (any, error) {
	page := query.PaginateValues(req.Query)
	return h.Repo.FindOnlyDeleted(ctx, repositories.ListOptions{
		OrderBy: []repositories.Order{{Column: repositories.ColDeletedAt, Desc: true}},
		Skip:    page.Skip,
		Take:    page.Take,
	})
}

// columnFilters keeps the filters named in allowed and renames them to
// columns.
func columnFilters(filters map[string]any, allowed map[string]string) map[string]any {
	out := map[string]any{}
	for k, v := range filters {
		if col, ok := allowed[k]; ok {
			out[col] = v
		}
	}
	return out
}

func includes(req *middleware.Request, name string) bool {
	for _, v := range req.Query["include"] {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == name {
				return true
			}
		}
	}
	return false
}
