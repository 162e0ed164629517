package admin

import "context"

// User is an organization account.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	RoleID string `json:"role_id,omitempty"`
}

// UserRequest creates or updates a user.
type UserRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Active *bool  `json:"active,omitempty"`
	RoleID string `json:"role_id,omitempty"`
}

// Users manages organization users.
type Users struct {
	crud crud[User]
}

func (u *Users) Query(ctx context.Context) ([]User, error) { return u.crud.query(ctx) }

func (u *Users) Get(ctx context.Context, id string) (*User, error) { return u.crud.get(ctx, id) }

func (u *Users) Create(ctx context.Context, req UserRequest) (*User, error) {
	return u.crud.create(ctx, req)
}

// Update saves the email, name, activation and role of user.
func (u *Users) Update(ctx context.Context, user *User) error {
	active := user.Active
	return u.crud.update(ctx, user.ID, UserRequest{Email: user.Email, Name: user.Name, Active: &active, RoleID: user.RoleID})
}

func (u *Users) Delete(ctx context.Context, id string) error { return u.crud.delete(ctx, id) }
