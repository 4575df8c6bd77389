package service

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
)

// NewContract carries the fields of a contract to create. It is validated
// at the HTTP boundary before it reaches the service.
type NewContract struct {
	Title          string
	Description    string
	Content        string
	Type           model.ContractType
	Parties        []model.Party
	Tags           []string
	Priority       model.Priority
	Category       string
	Amount         float64
	RetentionYears int
	TemplateID     string
}

// ContractService implements contract lifecycle operations on top of the
// repository, recording every change in the audit log.
type ContractService struct {
	repo  *ContractRepository
	audit *AuditAppender
	newID func() string
}

// NewContractService creates the contract lifecycle service.
func NewContractService(repo *ContractRepository, audit *AuditAppender) *ContractService {
	return &ContractService{repo: repo, audit: audit, newID: uuid.NewString}
}

// List returns one page of contracts.
func (s *ContractService) List(ctx context.Context, q PageQuery) Page {
	return s.repo.GetPaginated(ctx, q)
}

// Get returns a contract or a not-found error.
func (s *ContractService) Get(ctx context.Context, id string) (*model.Contract, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new draft contract.
func (s *ContractService) Create(ctx context.Context, in NewContract, actor string) (*model.Contract, error) {
	retention := in.RetentionYears
	if retention == 0 {
		retention = model.DefaultRetentionYears
	}

	parties := make([]model.Party, len(in.Parties))
	for i, p := range in.Parties {
		if p.ID == "" {
			p.ID = s.newID()
		}
		p.SignedAt = nil
		parties[i] = p
	}

	c := &model.Contract{
		ID:             s.newID(),
		Title:          in.Title,
		Description:    in.Description,
		Content:        in.Content,
		Type:           in.Type,
		Status:         model.StatusDraft,
		Parties:        parties,
		Signatures:     []model.Signature{},
		Attachments:    []model.Attachment{},
		AuditLog:       []model.AuditEntry{},
		RetentionYears: retention,
		Tags:           in.Tags,
		Priority:       in.Priority,
		Category:       in.Category,
		Amount:         in.Amount,
		TemplateID:     in.TemplateID,
		CreatedBy:      actor,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	logger.Info(ctx, "contract created", "contract_id", c.ID, "type", c.Type)
	s.audit.Append(ctx, c.ID, model.Created{Title: c.Title, TemplateID: c.TemplateID}, actor)
	return c, nil
}

// Update applies a user edit. Status may only move forward and never to
// completed; parties are frozen once signing has started.
func (s *ContractService) Update(ctx context.Context, id string, patch ContractPatch, actor string) (*model.Contract, error) {
	if patch.Signatures != nil || patch.AIAnalysis != nil || patch.AITags != nil || patch.Attachments != nil {
		return nil, apperr.Validation("更新できない項目が含まれています")
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil, apperr.Validation("更新する項目がありません")
	}

	if patch.Parties != nil {
		parties := slices.Clone(*patch.Parties)
		for i := range parties {
			if parties[i].ID == "" {
				parties[i].ID = s.newID()
			}
			parties[i].SignedAt = nil
		}
		patch.Parties = &parties
	}

	unlock := s.repo.Lock(id)
	defer unlock()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkEditable(current, patch); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("")
	}

	s.audit.Append(ctx, id, model.Updated{Fields: fields}, actor)
	if patch.Status != nil && *patch.Status != current.Status {
		s.audit.Append(ctx, id, model.StatusChanged{From: current.Status, To: *patch.Status}, actor)
	}
	return updated, nil
}

func checkEditable(current *model.Contract, patch ContractPatch) error {
	if patch.Status != nil && !model.CanTransition(current.Status, *patch.Status) {
		return apperr.Validation("ステータスを %s から %s に変更できません", current.Status, *patch.Status)
	}
	if current.Status.Terminal() {
		onlyLabels := patch.Title == nil && patch.Content == nil && patch.Type == nil &&
			patch.Parties == nil && patch.Amount == nil && patch.RetentionYears == nil
		if !onlyLabels {
			return apperr.Validation("%s の契約書は編集できません", current.Status)
		}
	}
	if patch.Parties != nil && (current.Status.Signing() || len(current.Signatures) > 0) {
		return apperr.Validation("署名開始後は当事者を変更できません")
	}
	if patch.Content != nil && current.Status.Signing() {
		return apperr.Validation("署名開始後は本文を変更できません")
	}
	return nil
}

// Delete removes a contract.
func (s *ContractService) Delete(ctx context.Context, id string, actor string) error {
	unlock := s.repo.Lock(id)
	defer unlock()

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("")
	}
	logger.Info(ctx, "contract deleted", "contract_id", id, "deleted_by", actor)
	return nil
}

// AuditLog returns the contract's audit entries and records the read.
func (s *ContractService) AuditLog(ctx context.Context, id string, actor string) ([]model.AuditEntry, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Append(ctx, id, model.Viewed{Resource: "auditLog"}, actor)
	return slices.Clone(c.AuditLog), nil
}
