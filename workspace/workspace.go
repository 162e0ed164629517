// Package workspace manages ProKnow workspaces and resolves them by id or name.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jathurchan/proknow/client"
	"github.com/jathurchan/proknow/logger"
	"github.com/patrickmn/go-cache"
)

const (
	// DefaultCacheTTL is how long a workspace listing is reused.
	DefaultCacheTTL = time.Minute

	listCacheKey = "workspaces"
)

// ErrWorkspaceNotFound is returned when a workspace cannot be resolved.
var ErrWorkspaceNotFound = errors.New("workspace not found")

var idPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Item is a workspace.
type Item struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

// CreateRequest describes a new workspace.
type CreateRequest struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Protected bool   `json:"protected"`
}

// Workspaces is the workspace service. Listings are cached briefly and
// dropped on every write.
type Workspaces struct {
	requestor client.Requestor
	logger    logger.Logger
	cache     *cache.Cache
}

// Option configures Workspaces.
type Option func(*Workspaces)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Workspaces) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithCacheTTL sets how long a listing is reused. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(w *Workspaces) {
		if ttl <= 0 {
			w.cache = nil
			return
		}
		w.cache = cache.New(ttl, ttl*2)
	}
}

// New creates the workspace service.
func New(requestor client.Requestor, opts ...Option) *Workspaces {
	w := &Workspaces{
		requestor: requestor,
		logger:    logger.NewNoOpLogger(),
		cache:     cache.New(DefaultCacheTTL, DefaultCacheTTL*2),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.WithComponent("workspace")
	return w
}

func itemRoute(id string) string {
	return "/workspaces/" + url.PathEscape(id)
}

// Query lists every workspace the credentials can see.
func (w *Workspaces) Query(ctx context.Context) ([]Item, error) {
	if w.cache != nil {
		if cached, found := w.cache.Get(listCacheKey); found {
			return cached.([]Item), nil
		}
	}

	var items []Item
	if err := w.requestor.Get(ctx, "/workspaces", &items); err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}
	if w.cache != nil {
		w.cache.Set(listCacheKey, items, cache.DefaultExpiration)
	}
	return items, nil
}

// Create adds a workspace.
func (w *Workspaces) Create(ctx context.Context, req CreateRequest) (*Item, error) {
	var item Item
	if err := w.requestor.Post(ctx, "/workspaces", req, &item); err != nil {
		return nil, fmt.Errorf("failed to create workspace %q: %w", req.Slug, err)
	}
	w.invalidate()
	w.logger.Infow("Workspace created", "id", item.ID, "slug", item.Slug)
	return &item, nil
}

// Update saves the slug, name and protection of item.
func (w *Workspaces) Update(ctx context.Context, item *Item) error {
	body := CreateRequest{Slug: item.Slug, Name: item.Name, Protected: item.Protected}
	if err := w.requestor.Put(ctx, itemRoute(item.ID), body, nil); err != nil {
		return fmt.Errorf("failed to update workspace %s: %w", item.ID, err)
	}
	w.invalidate()
	return nil
}

// Delete removes a workspace.
func (w *Workspaces) Delete(ctx context.Context, id string) error {
	if err := w.requestor.Delete(ctx, itemRoute(id)); err != nil {
		return fmt.Errorf("failed to delete workspace %s: %w", id, err)
	}
	w.invalidate()
	return nil
}

// Find returns the first workspace matching pred, or nil.
func (w *Workspaces) Find(ctx context.Context, pred func(Item) bool) (*Item, error) {
	items, err := w.Query(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if pred(item) {
			return &item, nil
		}
	}
	return nil, nil
}

// ResolveByID returns the workspace with the given id.
func (w *Workspaces) ResolveByID(ctx context.Context, id string) (*Item, error) {
	item, err := w.Find(ctx, func(i Item) bool { return i.ID == id })
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: id %s", ErrWorkspaceNotFound, id)
	}
	return item, nil
}

// ResolveByName returns the workspace whose name or slug matches, ignoring case.
func (w *Workspaces) ResolveByName(ctx context.Context, name string) (*Item, error) {
	item, err := w.Find(ctx, func(i Item) bool {
		return strings.EqualFold(i.Name, name) || strings.EqualFold(i.Slug, name)
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: name %q", ErrWorkspaceNotFound, name)
	}
	return item, nil
}

// Resolve treats a 32 character hex string as an id and anything else as a name.
func (w *Workspaces) Resolve(ctx context.Context, idOrName string) (*Item, error) {
	if idPattern.MatchString(idOrName) {
		return w.ResolveByID(ctx, idOrName)
	}
	return w.ResolveByName(ctx, idOrName)
}

func (w *Workspaces) invalidate() {
	if w.cache != nil {
		w.cache.Flush()
	}
}
