package handler

import (
	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/service"
)

type PartyRequest struct {
	ID                string          `json:"id"`
	Type              model.PartyRole `json:"type" binding:"required,oneof=contractor client"`
	Name              string          `json:"name" binding:"required,max=200"`
	Email             string          `json:"email" binding:"required,email"`
	Company           string          `json:"company" binding:"max=200"`
	Address           string          `json:"address" binding:"max=500"`
	Phone             string          `json:"phone" binding:"max=50"`
	SignatureRequired *bool           `json:"signatureRequired"`
}

func (p PartyRequest) toModel() model.Party {
	required := true
	if p.SignatureRequired != nil {
		required = *p.SignatureRequired
	}
	return model.Party{
		ID:                p.ID,
		Type:              p.Type,
		Name:              p.Name,
		Email:             p.Email,
		Company:           p.Company,
		Address:           p.Address,
		Phone:             p.Phone,
		SignatureRequired: required,
	}
}

func toParties(in []PartyRequest) []model.Party {
	out := make([]model.Party, len(in))
	for i, p := range in {
		out[i] = p.toModel()
	}
	return out
}

type CreateContractRequest struct {
	Title          string             `json:"title" binding:"required,max=200"`
	Description    string             `json:"description" binding:"max=2000"`
	Content        string             `json:"content" binding:"required"`
	Type           model.ContractType `json:"type" binding:"required,oneof=service sales nda employment lease other"`
	Parties        []PartyRequest     `json:"parties" binding:"omitempty,max=20,dive"`
	Tags           []string           `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	Priority       model.Priority     `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category       string             `json:"category" binding:"max=100"`
	Amount         float64            `json:"amount" binding:"gte=0"`
	RetentionYears int                `json:"retentionPeriod" binding:"omitempty,min=1,max=100"`
}

func (r CreateContractRequest) toService() service.NewContract {
	return service.NewContract{
		Title:          r.Title,
		Description:    r.Description,
		Content:        r.Content,
		Type:           r.Type,
		Parties:        toParties(r.Parties),
		Tags:           r.Tags,
		Priority:       r.Priority,
		Category:       r.Category,
		Amount:         r.Amount,
		RetentionYears: r.RetentionYears,
	}
}

// UpdateContractRequest is a partial edit; absent fields stay unchanged.
// Signatures, attachments and analysis results are not client-writable.
type UpdateContractRequest struct {
	Title          *string             `json:"title" binding:"omitempty,min=1,max=200"`
	Description    *string             `json:"description" binding:"omitempty,max=2000"`
	Content        *string             `json:"content" binding:"omitempty,min=1"`
	Type           *model.ContractType `json:"type" binding:"omitempty,oneof=service sales nda employment lease other"`
	Status         *model.Status       `json:"status" binding:"omitempty,oneof=draft pending_review pending_signature partially_signed completed cancelled expired"`
	Parties        *[]PartyRequest     `json:"parties" binding:"omitempty,max=20,dive"`
	Tags           *[]string           `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	Priority       *model.Priority     `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category       *string             `json:"category" binding:"omitempty,max=100"`
	Amount         *float64            `json:"amount" binding:"omitempty,gte=0"`
	RetentionYears *int                `json:"retentionPeriod" binding:"omitempty,min=1,max=100"`
}

func (r UpdateContractRequest) toPatch() service.ContractPatch {
	patch := service.ContractPatch{
		Title:          r.Title,
		Description:    r.Description,
		Content:        r.Content,
		Type:           r.Type,
		Status:         r.Status,
		Tags:           r.Tags,
		Priority:       r.Priority,
		Category:       r.Category,
		Amount:         r.Amount,
		RetentionYears: r.RetentionYears,
	}
	if r.Parties != nil {
		parties := toParties(*r.Parties)
		patch.Parties = &parties
	}
	return patch
}

type AnalyzeRequest struct {
	ContractID string `json:"contractId"`
}

type ChatRequest struct {
	ContractID          string                `json:"contractId"`
	Message             string                `json:"message" binding:"max=4000"`
	ConversationHistory []service.ChatMessage `json:"conversationHistory" binding:"omitempty,max=50"`
	IsContractSpecific  bool                  `json:"isContractSpecific"`
}

type SignRequest struct {
	PartyID string `json:"partyId" binding:"required"`
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"required,email"`
}

type InstantiateRequest struct {
	Title           string         `json:"title" binding:"max=200"`
	Description     string         `json:"description" binding:"max=2000"`
	Values          map[string]any `json:"values"`
	OptionalClauses []string       `json:"optionalClauses"`
	Parties         []PartyRequest `json:"parties" binding:"omitempty,max=20,dive"`
	Tags            []string       `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	Priority        model.Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category        string         `json:"category" binding:"max=100"`
	Amount          float64        `json:"amount" binding:"gte=0"`
	RetentionYears  int            `json:"retentionPeriod" binding:"omitempty,min=1,max=100"`
}

func (r InstantiateRequest) toService() service.InstantiateInput {
	return service.InstantiateInput{
		Title:           r.Title,
		Description:     r.Description,
		Values:          r.Values,
		OptionalClauses: r.OptionalClauses,
		Parties:         toParties(r.Parties),
		Tags:            r.Tags,
		Priority:        r.Priority,
		Category:        r.Category,
		Amount:          r.Amount,
		RetentionYears:  r.RetentionYears,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}
