// Package admin covers organization administration: users, roles and custom metrics.
package admin

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jathurchan/proknow/client"
)

// Admin groups the administration services.
type Admin struct {
	Users         *Users
	Roles         *Roles
	CustomMetrics *CustomMetrics
}

// New creates the administration services.
func New(requestor client.Requestor) *Admin {
	return &Admin{
		Users:         &Users{crud: crud[User]{requestor: requestor, route: "/users", kind: "user"}},
		Roles:         &Roles{crud: crud[Role]{requestor: requestor, route: "/roles", kind: "role"}},
		CustomMetrics: &CustomMetrics{crud: crud[CustomMetric]{requestor: requestor, route: "/metrics/custom", kind: "custom metric"}},
	}
}

// crud implements the list/get/create/update/delete routes shared by every
// administration resource.
type crud[T any] struct {
	requestor client.Requestor
	route     string
	kind      string
}

func (c crud[T]) itemRoute(id string) string {
	return c.route + "/" + url.PathEscape(id)
}

func (c crud[T]) query(ctx context.Context) ([]T, error) {
	var items []T
	if err := c.requestor.Get(ctx, c.route, &items); err != nil {
		return nil, fmt.Errorf("failed to query %ss: %w", c.kind, err)
	}
	return items, nil
}

func (c crud[T]) get(ctx context.Context, id string) (*T, error) {
	var item T
	if err := c.requestor.Get(ctx, c.itemRoute(id), &item); err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", c.kind, id, err)
	}
	return &item, nil
}

func (c crud[T]) create(ctx context.Context, body any) (*T, error) {
	var item T
	if err := c.requestor.Post(ctx, c.route, body, &item); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", c.kind, err)
	}
	return &item, nil
}

func (c crud[T]) update(ctx context.Context, id string, body any) error {
	if err := c.requestor.Put(ctx, c.itemRoute(id), body, nil); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", c.kind, id, err)
	}
	return nil
}

func (c crud[T]) delete(ctx context.Context, id string) error {
	if err := c.requestor.Delete(ctx, c.itemRoute(id)); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", c.kind, id, err)
	}
	return nil
}
