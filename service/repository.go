package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
)

// ErrContractNotFound is returned by backends for unknown ids.
var ErrContractNotFound = errors.New("contract not found")

// ContractBackend is a storage implementation for contracts. Backends return
// copies; callers may mutate what they receive.
type ContractBackend interface {
	List(ctx context.Context) ([]*model.Contract, error)
	Get(ctx context.Context, id string) (*model.Contract, error)
	Insert(ctx context.Context, c *model.Contract) error
	Update(ctx context.Context, id string, patch ContractPatch, now time.Time) (*model.Contract, error)
	Delete(ctx context.Context, id string) (bool, error)
	AppendAudit(ctx context.Context, id string, entry model.AuditEntry) error
}

// ContractPatch is a partial update; nil fields are left untouched.
type ContractPatch struct {
	Title          *string
	Description    *string
	Content        *string
	Type           *model.ContractType
	Status         *model.Status
	Parties        *[]model.Party
	Signatures     *[]model.Signature
	Attachments    *[]model.Attachment
	RetentionYears *int
	AIAnalysis     *model.AIAnalysis
	AITags         *[]string
	Tags           *[]string
	Priority       *model.Priority
	Category       *string
	Amount         *float64
}

// Apply writes the set fields of p onto c and stamps UpdatedAt.
func (p ContractPatch) Apply(c *model.Contract, now time.Time) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Parties != nil {
		c.Parties = *p.Parties
	}
	if p.Signatures != nil {
		c.Signatures = *p.Signatures
	}
	if p.Attachments != nil {
		c.Attachments = *p.Attachments
	}
	if p.RetentionYears != nil {
		c.RetentionYears = *p.RetentionYears
	}
	if p.AIAnalysis != nil {
		a := *p.AIAnalysis
		c.AIAnalysis = &a
	}
	if p.AITags != nil {
		c.AITags = *p.AITags
	}
	if p.Tags != nil {
		c.Tags = *p.Tags
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Amount != nil {
		c.Amount = *p.Amount
	}
	c.UpdatedAt = now
}

// Fields lists the names of the fields p sets, in wire naming.
func (p ContractPatch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Title != nil, "title")
	add(p.Description != nil, "description")
	add(p.Content != nil, "content")
	add(p.Type != nil, "type")
	add(p.Status != nil, "status")
	add(p.Parties != nil, "parties")
	add(p.Signatures != nil, "signatures")
	add(p.Attachments != nil, "attachments")
	add(p.RetentionYears != nil, "retentionPeriod")
	add(p.AIAnalysis != nil, "aiAnalysis")
	add(p.AITags != nil, "aiTags")
	add(p.Tags != nil, "tags")
	add(p.Priority != nil, "priority")
	add(p.Category != nil, "category")
	add(p.Amount != nil, "amount")
	return fields
}

// PageQuery asks for one page of a filtered, sorted listing. Page and Limit
// are 1-based and must already be clamped by the caller.
type PageQuery struct {
	Page   int
	Limit  int
	Filter FilterSpec
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Page is one page of contracts.
type Page struct {
	Data       []*model.Contract `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// ContractRepository gives uniform access to contracts over either backend.
// Listing reads degrade to empty results when the backend fails; single
// record reads and all writes propagate the failure.
//
// Services that read a contract, check it and write it back must hold
// Lock for that contract across the whole sequence.
type ContractRepository struct {
	backend ContractBackend
	locks   *keyedMutex
	now     func() time.Time
}

// NewContractRepository creates a repository over backend.
func NewContractRepository(backend ContractBackend) *ContractRepository {
	return &ContractRepository{backend: backend, locks: newKeyedMutex(), now: time.Now}
}

// Lock serialises read-check-write sequences on one contract within this
// process and returns the matching unlock.
func (r *ContractRepository) Lock(id string) func() {
	return r.locks.Lock(id)
}

// GetAll returns every contract, or an empty slice if the backend fails.
func (r *ContractRepository) GetAll(ctx context.Context) []*model.Contract {
	contracts, err := r.backend.List(ctx)
	if err != nil {
		logger.Error(ctx, "failed to list contracts, returning empty result", "error", err)
		return []*model.Contract{}
	}
	return contracts
}

// Get returns the contract or a not-found error.
func (r *ContractRepository) Get(ctx context.Context, id string) (*model.Contract, error) {
	c, err := r.backend.Get(ctx, id)
	if errors.Is(err, ErrContractNotFound) {
		return nil, apperr.NotFound("")
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create stores a new contract, stamping timestamps when unset.
func (r *ContractRepository) Create(ctx context.Context, c *model.Contract) error {
	now := r.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return r.backend.Insert(ctx, c)
}

// Update applies patch and returns the updated contract, or nil when no
// contract has that id.
func (r *ContractRepository) Update(ctx context.Context, id string, patch ContractPatch) (*model.Contract, error) {
	c, err := r.backend.Update(ctx, id, patch, r.now())
	if errors.Is(err, ErrContractNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a contract and reports whether it existed.
func (r *ContractRepository) Delete(ctx context.Context, id string) (bool, error) {
	return r.backend.Delete(ctx, id)
}

// Search returns the contracts matching spec in spec's order.
func (r *ContractRepository) Search(ctx context.Context, spec FilterSpec) []*model.Contract {
	return FilterAndSort(r.GetAll(ctx), spec)
}

// GetPaginated returns one page of the filtered listing.
func (r *ContractRepository) GetPaginated(ctx context.Context, q PageQuery) Page {
	matched := r.Search(ctx, q.Filter)
	total := len(matched)
	totalPages := int(math.Ceil(float64(total) / float64(q.Limit)))

	start := (q.Page - 1) * q.Limit
	end := start + q.Limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Data: matched[start:end],
		Pagination: Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    q.Page < totalPages,
			HasPrev:    q.Page > 1,
		},
	}
}

// AppendAudit adds one entry to the contract's audit log.
func (r *ContractRepository) AppendAudit(ctx context.Context, id string, entry model.AuditEntry) error {
	return r.backend.AppendAudit(ctx, id, entry)
}
