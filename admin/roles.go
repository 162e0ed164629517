package admin

import "context"

// Role is a named set of permissions.
type Role struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Permissions map[string]bool `json:"permissions"`
}

// RoleRequest creates or updates a role.
type RoleRequest struct {
	Name        string          `json:"name"`
	Permissions map[string]bool `json:"permissions"`
}

// Roles manages organization roles.
type Roles struct {
	crud crud[Role]
}

func (r *Roles) Query(ctx context.Context) ([]Role, error) { return r.crud.query(ctx) }

func (r *Roles) Get(ctx context.Context, id string) (*Role, error) { return r.crud.get(ctx, id) }

func (r *Roles) Create(ctx context.Context, req RoleRequest) (*Role, error) {
	return r.crud.create(ctx, req)
}

func (r *Roles) Update(ctx context.Context, role *Role) error {
	return r.crud.update(ctx, role.ID, RoleRequest{Name: role.Name, Permissions: role.Permissions})
}

func (r *Roles) Delete(ctx context.Context, id string) error { return r.crud.delete(ctx, id) }
