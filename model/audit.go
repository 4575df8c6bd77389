package model

import "time"

// ActionTag names what an audit entry records.
type ActionTag string

const (
	ActionCreated       ActionTag = "created"
	ActionUpdated       ActionTag = "updated"
	ActionViewed        ActionTag = "viewed"
	ActionStatusChanged ActionTag = "status_changed"
	ActionSent          ActionTag = "sent"
	ActionSigned        ActionTag = "signed"
	ActionCompleted     ActionTag = "completed"
	ActionAIAnalyzed    ActionTag = "ai_analyzed"
	ActionAttached      ActionTag = "attachment_added"
)

// AuditEntry is an immutable record of an action taken on a contract.
type AuditEntry struct {
	ID          string         `json:"id" bson:"id"`
	Action      ActionTag      `json:"action" bson:"action"`
	PerformedBy string         `json:"performedBy" bson:"performedBy"`
	Timestamp   time.Time      `json:"timestamp" bson:"timestamp"`
	Details     map[string]any `json:"details,omitempty" bson:"details,omitempty"`
}

func (e AuditEntry) clone() AuditEntry {
	if e.Details != nil {
		d := make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			d[k] = v
		}
		e.Details = d
	}
	return e
}

// AuditAction is the closed set of auditable actions. Each variant carries
// its own typed details.
type AuditAction interface {
	Tag() ActionTag
	Details() map[string]any
	isAuditAction()
}

type Created struct {
	Title      string
	TemplateID string
}

func (Created) Tag() ActionTag { return ActionCreated }
func (a Created) Details() map[string]any {
	d := map[string]any{"title": a.Title}
	if a.TemplateID != "" {
		d["templateId"] = a.TemplateID
	}
	return d
}
func (Created) isAuditAction() {}

type Updated struct {
	Fields []string
}

func (Updated) Tag() ActionTag { return ActionUpdated }
func (a Updated) Details() map[string]any {
	return map[string]any{"fields": a.Fields}
}
func (Updated) isAuditAction() {}

type Viewed struct {
	Resource string
}

func (Viewed) Tag() ActionTag { return ActionViewed }
func (a Viewed) Details() map[string]any {
	return map[string]any{"resource": a.Resource}
}
func (Viewed) isAuditAction() {}

type StatusChanged struct {
	From Status
	To   Status
}

func (StatusChanged) Tag() ActionTag { return ActionStatusChanged }
func (a StatusChanged) Details() map[string]any {
	return map[string]any{"from": string(a.From), "to": string(a.To)}
}
func (StatusChanged) isAuditAction() {}

type Sent struct {
	Recipients []string
}

func (Sent) Tag() ActionTag { return ActionSent }
func (a Sent) Details() map[string]any {
	return map[string]any{"recipients": a.Recipients}
}
func (Sent) isAuditAction() {}

type Signed struct {
	PartyID          string
	SignerEmail      string
	VerificationHash string
	IPAddress        string
}

func (Signed) Tag() ActionTag { return ActionSigned }
func (a Signed) Details() map[string]any {
	return map[string]any{
		"partyId":          a.PartyID,
		"signerEmail":      a.SignerEmail,
		"verificationHash": a.VerificationHash,
		"ipAddress":        a.IPAddress,
	}
}
func (Signed) isAuditAction() {}

type Completed struct {
	SignatureCount int
}

func (Completed) Tag() ActionTag { return ActionCompleted }
func (a Completed) Details() map[string]any {
	return map[string]any{"signatureCount": a.SignatureCount}
}
func (Completed) isAuditAction() {}

type AIAnalyzed struct {
	RisksFound int
	Model      string
}

func (AIAnalyzed) Tag() ActionTag { return ActionAIAnalyzed }
func (a AIAnalyzed) Details() map[string]any {
	return map[string]any{"risksFound": a.RisksFound, "model": a.Model}
}
func (AIAnalyzed) isAuditAction() {}

type Attached struct {
	AttachmentID string
	Filename     string
	Size         int64
}

func (Attached) Tag() ActionTag { return ActionAttached }
func (a Attached) Details() map[string]any {
	return map[string]any{"attachmentId": a.AttachmentID, "filename": a.Filename, "size": a.Size}
}
func (Attached) isAuditAction() {}
