package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"sort"
	"sync"

	intconfig "apicore/internal/config"
	"apicore/internal/db"
	"apicore/internal/domain"
	"apicore/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

var (
	routerMu sync.RWMutex
	router   *gin.Engine
)

// SetRouter stores the active gin engine for /api/routes.
func SetRouter(r *gin.Engine) {
	routerMu.Lock()
	defer routerMu.Unlock()
	router = r
}

// Schema lists the tables and columns the API depends on.
var Schema = []db.Expectation{
	{Table: "users", Columns: []string{"id", "email", "name", "password_hash", "role", "created_at", "updated_at", "deleted_at"}},
	{Table: "projects", Columns: []string{"id", "name", "description", "owner_id", "created_at", "updated_at", "deleted_at"}},
}

// System serves the operational endpoints.
type System struct {
	// DB falls back to the shared connection when nil.
	DB *sql.DB
}

func (s System) conn() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

func (s System) Health(ctx context.Context, req *middleware.Request) (any, error) {
	return map[string]any{"status": "ok", "message": "apicore running"}, nil
}

// DBCheck pings the database and verifies the expected schema.
func (s System) DBCheck(ctx context.Context, req *middleware.Request) (any, error) {
	conn := s.conn()
	if conn == nil {
		return nil, domain.StoreError{Kind: domain.StoreUnavailable, Err: sql.ErrConnDone}
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, domain.StoreError{Kind: domain.StoreUnavailable, Err: err}
	}
	tables, ok, err := db.Check(ctx, conn, Schema)
	if err != nil {
		return nil, err
	}
	if !ok {
		for _, t := range tables {
			if !t.Exists || len(t.MissingColumns) > 0 {
				field := ""
				if len(t.MissingColumns) > 0 {
					field = t.MissingColumns[0]
				}
				return nil, domain.StoreError{Kind: domain.StoreSchemaMismatch, Entity: t.Table, Field: field}
			}
		}
	}

	var users int64
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE deleted_at IS NULL").Scan(&users); err != nil {
		return nil, err
	}
	return map[string]any{"database": "ok", "tables": tables, "usersInDb": users}, nil
}

type routeInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (s System) Routes(ctx context.Context, req *middleware.Request) (any, error) {
	routerMu.RLock()
	r := router
	routerMu.RUnlock()
	if r == nil {
		return nil, domain.HTTPError{Status: http.StatusServiceUnavailable, Message: "Router not ready"}
	}

	routes := r.Routes()
	out := make([]routeInfo, 0, len(routes))
	for _, rt := range routes {
		out = append(out, routeInfo{Method: rt.Method, Path: rt.Path})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return map[string]any{"routes": out}, nil
}
