package handlers

import (
	"context"
	"strings"

	"apicore/internal/domain"
	"apicore/internal/domain/models"
	"apicore/internal/http/middleware"
	"apicore/internal/query"
	"apicore/internal/repositories"
)

// Projects serves project CRUD.
type Projects struct {
	Repo   *repositories.ProjectRepository
	Search query.SearchNormalizer
}

var projectFilters = map[string]string{"ownerId": "owner_id", "owner_id": "owner_id"}

func (h Projects) List(ctx context.Context, req *middleware.Request) (any, error) {
	opts, err := h.Search.NormalizeValues(req.Query)
	if err != nil {
		return nil, err
	}
	list := repositories.ListOptions{}
	if opts.Search != "" {
		list.Search = &repositories.Search{Term: opts.Search, Columns: repositories.ProjectSearchColumns}
	}
	if includes(req, "owner") {
		list.Include = []string{"owner"}
	}
	return h.Repo.FindWithPagination(ctx, columnFilters(opts.Filters, projectFilters), opts.PaginationQuery, list)
}

func (h Projects) Get(ctx context.Context, req *middleware.Request) (any, error) {
	id, err := query.ParseUUID("id", req.Param("id"), 4, false)
	if err != nil {
		return nil, err
	}
	var opts repositories.FindOptions
	if includes(req, "owner") {
		opts.Include = []string{"owner"}
	}
	p, err := h.Repo.FindByID(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NotFound("Project", id)
	}
	return p, nil
}

// Create defaults the owner to the authenticated user.
func (h Projects) Create(ctx context.Context, req *middleware.Request) (any, error) {
	var in models.CreateProjectInput
	if err := req.Bind(&in); err != nil {
		return nil, err
	}
	owner := in.OwnerID
	if owner == "" {
		owner = req.Context.UserID
	}
	if owner == "" {
		return nil, domain.Invalid("ownerId", "should not be empty")
	}
	var description any
	if in.Description != nil {
		description = query.Trim(*in.Description, query.TrimOptions{EmptyToNil: true})
	}
	return h.Repo.Create(ctx, repositories.Values{
		"name":        strings.TrimSpace(in.Name),
		"description": description,
		"owner_id":    owner,
	})
}

func (h Projects) Update(ctx context.Context, req *middleware.Request) (any, error) {
	id, err := query.ParseUUID("id", req.Param("id"), 4, false)
	if err != nil {
		return nil, err
	}
	var in models.UpdateProjectInput
	if err := req.Bind(&in); err != nil {
		return nil, err
	}
	values := repositories.Values{}
	if in.Name != nil {
		values["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		values["description"] = query.Trim(*in.Description, query.TrimOptions{EmptyToNil: true})
	}
	if len(values) == 0 {
		return nil, domain.BadRequest(domain.CodeValidationFailed, "No fields to update", nil)
	}
	return h.Repo.Update(ctx, id, values)
}

func (h Projects) Delete(ctx context.Context, req *middleware.Request) (any, error) {
	id, err := query.ParseUUID("id", req.Param("id"), 4, false)
	if err != nil {
		return nil, err
	}
	return h.Repo.Delete(ctx, id, true)
}
