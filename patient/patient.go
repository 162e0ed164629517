// Package patient manages patients and lists the structure sets of their studies.
package patient

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jathurchan/proknow/client"
	"github.com/jathurchan/proknow/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultBatchConcurrency bounds concurrent requests in CreateBatch.
const DefaultBatchConcurrency = 4

// StructureSetType is the entity type of a structure set.
const StructureSetType = "structure_set"

// Summary is a patient as listed in a workspace.
type Summary struct {
	ID        string `json:"id"`
	MRN       string `json:"mrn"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	Sex       string `json:"sex,omitempty"`
}

// Entity is an imaging object within a study.
type Entity struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	UID         string `json:"uid"`
	Modality    string `json:"modality"`
	Description string `json:"description"`
}

// Study groups the entities of one imaging study.
type Study struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	UID      string   `json:"uid"`
	Entities []Entity `json:"entities"`
}

// Item is a patient with its studies.
type Item struct {
	Summary
	WorkspaceID string  `json:"-"`
	Studies     []Study `json:"studies"`
}

// StructureSets returns the structure set entities of every study.
func (p *Item) StructureSets() []Entity {
	var out []Entity
	for _, study := range p.Studies {
		for _, entity := range study.Entities {
			if entity.Type == StructureSetType {
				out = append(out, entity)
			}
		}
	}
	return out
}

// FindEntity returns the first entity matching pred, or nil.
func (p *Item) FindEntity(pred func(Entity) bool) *Entity {
	for _, study := range p.Studies {
		for i := range study.Entities {
			if pred(study.Entities[i]) {
				return &study.Entities[i]
			}
		}
	}
	return nil
}

// CreateRequest describes a new patient.
type CreateRequest struct {
	MRN       string `json:"mrn"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date,omitempty"`
	Sex       string `json:"sex,omitempty"`
}

// Patients is the patient service.
type Patients struct {
	requestor client.Requestor
	logger    logger.Logger
}

// New creates the patient service.
func New(requestor client.Requestor, log logger.Logger) *Patients {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Patients{requestor: requestor, logger: log.WithComponent("patient")}
}

func listRoute(workspaceID string) string {
	return "/workspaces/" + url.PathEscape(workspaceID) + "/patients"
}

func itemRoute(workspaceID, patientID string) string {
	return listRoute(workspaceID) + "/" + url.PathEscape(patientID)
}

// Query lists the patients of a workspace, optionally filtered by a search string.
func (p *Patients) Query(ctx context.Context, workspaceID, search string) ([]Summary, error) {
	var opts []client.RequestOption
	if search != "" {
		opts = append(opts, client.WithQuery("search", search))
	}

	var patients []Summary
	if err := p.requestor.Get(ctx, listRoute(workspaceID), &patients, opts...); err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	return patients, nil
}

// Get returns a patient with its studies.
func (p *Patients) Get(ctx context.Context, workspaceID, patientID string) (*Item, error) {
	var item Item
	if err := p.requestor.Get(ctx, itemRoute(workspaceID, patientID), &item); err != nil {
		return nil, fmt.Errorf("failed to get patient %s: %w", patientID, err)
	}
	item.WorkspaceID = workspaceID
	return &item, nil
}

// Find returns the first patient of the workspace matching pred, or nil.
func (p *Patients) Find(ctx context.Context, workspaceID string, pred func(Summary) bool) (*Summary, error) {
	patients, err := p.Query(ctx, workspaceID, "")
	if err != nil {
		return nil, err
	}
	for _, patient := range patients {
		if pred(patient) {
			return &patient, nil
		}
	}
	return nil, nil
}

// Create adds a patient to a workspace.
func (p *Patients) Create(ctx context.Context, workspaceID string, req CreateRequest) (*Item, error) {
	if req.MRN == "" || req.Name == "" {
		return nil, errors.New("patient mrn and name are required")
	}

	var item Item
	if err := p.requestor.Post(ctx, listRoute(workspaceID), req, &item); err != nil {
		return nil, fmt.Errorf("failed to create patient %s: %w", req.MRN, err)
	}
	item.WorkspaceID = workspaceID
	p.logger.Infow("Patient created", "id", item.ID, "workspace", workspaceID)
	return &item, nil
}

// Delete removes a patient.
func (p *Patients) Delete(ctx context.Context, workspaceID, patientID string) error {
	if err := p.requestor.Delete(ctx, itemRoute(workspaceID, patientID)); err != nil {
		return fmt.Errorf("failed to delete patient %s: %w", patientID, err)
	}
	return nil
}

// CreateBatch creates patients with at most concurrency requests in flight.
// Results keep the order of reqs. The first failure cancels the remaining
// creations and is returned along with the patients created so far.
func (p *Patients) CreateBatch(ctx context.Context, workspaceID string, reqs []CreateRequest, concurrency int) ([]*Item, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]*Item, len(reqs))
	sem := semaphore.NewWeighted(int64(concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, req := range reqs {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			item, err := p.Create(gctx, workspaceID, req)
			if err != nil {
				return err
			}
			results[i] = item
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		// Acquire only fails once gctx is done.
		err = ctx.Err()
	}
	return results, err
}
