package model

import (
	"time"
)

// ContractType classifies a contract.
type ContractType string

const (
	TypeService    ContractType = "service"
	TypeSales      ContractType = "sales"
	TypeNDA        ContractType = "nda"
	TypeEmployment ContractType = "employment"
	TypeLease      ContractType = "lease"
	TypeOther      ContractType = "other"
)

var contractTypes = map[ContractType]bool{
	TypeService: true, TypeSales: true, TypeNDA: true,
	TypeEmployment: true, TypeLease: true, TypeOther: true,
}

// Valid reports whether t is a known contract type.
func (t ContractType) Valid() bool {
	return contractTypes[t]
}

// Priority is the business priority of a contract.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var priorityRank = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
}

// Rank orders priorities; unknown or empty priorities rank 0.
func (p Priority) Rank() int {
	return priorityRank[p]
}

// PartyRole is the role a party plays in a contract.
type PartyRole string

const (
	RoleContractor PartyRole = "contractor"
	RoleClient     PartyRole = "client"
)

// DefaultRetentionYears is the statutory retention period for contract records.
const DefaultRetentionYears = 7

// Contract represents a contract document
type Contract struct {
	ID             string       `json:"id" bson:"_id"`
	Title          string       `json:"title" bson:"title"`
	Description    string       `json:"description,omitempty" bson:"description,omitempty"`
	Content        string       `json:"content" bson:"content"`
	Type           ContractType `json:"type" bson:"type"`
	Status         Status       `json:"status" bson:"status"`
	Parties        []Party      `json:"parties" bson:"parties"`
	Signatures     []Signature  `json:"signatures" bson:"signatures"`
	Attachments    []Attachment `json:"attachments" bson:"attachments"`
	RetentionYears int          `json:"retentionPeriod" bson:"retentionPeriod"`
	AuditLog       []AuditEntry `json:"auditLog" bson:"auditLog"`
	AIAnalysis     *AIAnalysis  `json:"aiAnalysis,omitempty" bson:"aiAnalysis,omitempty"`
	AITags         []string     `json:"aiTags,omitempty" bson:"aiTags,omitempty"`
	Tags           []string     `json:"tags,omitempty" bson:"tags,omitempty"`
	Priority       Priority     `json:"priority,omitempty" bson:"priority,omitempty"`
	Category       string       `json:"category,omitempty" bson:"category,omitempty"`
	Amount         float64      `json:"amount,omitempty" bson:"amount,omitempty"`
	TemplateID     string       `json:"templateId,omitempty" bson:"templateId,omitempty"`
	CreatedBy      string       `json:"createdBy,omitempty" bson:"createdBy,omitempty"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// Party is a person or organisation bound by a contract.
type Party struct {
	ID                string     `json:"id" bson:"id"`
	Type              PartyRole  `json:"type" bson:"type"`
	Name              string     `json:"name" bson:"name"`
	Email             string     `json:"email" bson:"email"`
	Company           string     `json:"company,omitempty" bson:"company,omitempty"`
	Address           string     `json:"address,omitempty" bson:"address,omitempty"`
	Phone             string     `json:"phone,omitempty" bson:"phone,omitempty"`
	SignatureRequired bool       `json:"signatureRequired" bson:"signatureRequired"`
	SignedAt          *time.Time `json:"signedAt,omitempty" bson:"signedAt,omitempty"`
}

// Signature is created once when a party signs and never changes.
type Signature struct {
	ID               string    `json:"id" bson:"id"`
	PartyID          string    `json:"partyId" bson:"partyId"`
	SignerName       string    `json:"signerName" bson:"signerName"`
	SignerEmail      string    `json:"signerEmail" bson:"signerEmail"`
	SignedAt         time.Time `json:"signedAt" bson:"signedAt"`
	VerificationHash string    `json:"verificationHash" bson:"verificationHash"`
	IPAddress        string    `json:"ipAddress" bson:"ipAddress"`
	UserAgent        string    `json:"userAgent" bson:"userAgent"`
}

// Attachment references a file kept in blob storage.
type Attachment struct {
	ID          string    `json:"id" bson:"id"`
	Filename    string    `json:"filename" bson:"filename"`
	ContentType string    `json:"contentType" bson:"contentType"`
	Size        int64     `json:"size" bson:"size"`
	ObjectKey   string    `json:"objectKey" bson:"objectKey"`
	UploadedBy  string    `json:"uploadedBy" bson:"uploadedBy"`
	UploadedAt  time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

// Severity grades a risk found by contract analysis.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskItem is one risk reported by the analysis service.
type RiskItem struct {
	Level       Severity `json:"level" bson:"level"`
	Description string   `json:"description" bson:"description"`
	Clause      string   `json:"clause,omitempty" bson:"clause,omitempty"`
}

// AIAnalysis is the structured result merged onto a contract after analysis.
type AIAnalysis struct {
	Summary         string     `json:"summary" bson:"summary"`
	KeyTerms        []string   `json:"keyTerms" bson:"keyTerms"`
	Risks           []RiskItem `json:"risks" bson:"risks"`
	Recommendations []string   `json:"recommendations" bson:"recommendations"`
	AnalyzedAt      time.Time  `json:"analyzedAt" bson:"analyzedAt"`
}

// ClientCompany returns the company of the first client party, or "".
func (c *Contract) ClientCompany() string {
	for _, p := range c.Parties {
		if p.Type == RoleClient {
			return p.Company
		}
	}
	return ""
}

// FindParty returns the party with the given id.
func (c *Contract) FindParty(id string) (*Party, bool) {
	for i := range c.Parties {
		if c.Parties[i].ID == id {
			return &c.Parties[i], true
		}
	}
	return nil, false
}

// AllRequiredSigned reports whether every party that must sign has signed.
func (c *Contract) AllRequiredSigned() bool {
	required := 0
	for _, p := range c.Parties {
		if !p.SignatureRequired {
			continue
		}
		required++
		if p.SignedAt == nil {
			return false
		}
	}
	return required > 0
}

// Clone returns a deep copy so callers never share slices with a store.
// The list fields always come back non-nil and serialise as [].
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	out := *c
	out.Parties = cloneParties(c.Parties)
	out.Signatures = cloneList(c.Signatures)
	out.Attachments = cloneList(c.Attachments)
	out.AuditLog = make([]AuditEntry, len(c.AuditLog))
	for i, e := range c.AuditLog {
		out.AuditLog[i] = e.clone()
	}
	out.AITags = append([]string(nil), c.AITags...)
	out.Tags = append([]string(nil), c.Tags...)
	if c.AIAnalysis != nil {
		a := *c.AIAnalysis
		a.KeyTerms = append([]string(nil), c.AIAnalysis.KeyTerms...)
		a.Risks = append([]RiskItem(nil), c.AIAnalysis.Risks...)
		a.Recommendations = append([]string(nil), c.AIAnalysis.Recommendations...)
		out.AIAnalysis = &a
	}
	return &out
}

func cloneList[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneParties(in []Party) []Party {
	out := make([]Party, len(in))
	for i, p := range in {
		if p.SignedAt != nil {
			t := *p.SignedAt
			p.SignedAt = &t
		}
		out[i] = p
	}
	return out
}
