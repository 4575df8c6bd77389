package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPriorityRank(t *testing.T) {
	tests := []struct {
		priority Priority
		want     int
	}{
		{PriorityLow, 1},
		{PriorityMedium, 2},
		{PriorityHigh, 3},
		{"", 0},
		{"urgent", 0},
	}
	for _, tt := range tests {
		if got := tt.priority.Rank(); got != tt.want {
			t.Errorf("Rank(%q) = %d, want %d", tt.priority, got, tt.want)
		}
	}
}

func TestClientCompany(t *testing.T) {
	c := &Contract{Parties: []Party{
		{Type: RoleContractor, Company: "Vendor KK"},
		{Type: RoleClient, Company: "Acme"},
		{Type: RoleClient, Company: "Second Client"},
	}}
	if got := c.ClientCompany(); got != "Acme" {
		t.Errorf("Expected first client company Acme, got %q", got)
	}

	none := &Contract{Parties: []Party{{Type: RoleContractor, Company: "Vendor KK"}}}
	if got := none.ClientCompany(); got != "" {
		t.Errorf("Expected empty company without client party, got %q", got)
	}
}

func TestAllRequiredSigned(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		parties []Party
		want    bool
	}{
		{"no parties", nil, false},
		{"none required", []Party{{ID: "a"}}, false},
		{"one unsigned", []Party{{ID: "a", SignatureRequired: true, SignedAt: &now}, {ID: "b", SignatureRequired: true}}, false},
		{"all signed", []Party{{ID: "a", SignatureRequired: true, SignedAt: &now}, {ID: "b"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Contract{Parties: tt.parties}
			if got := c.AllRequiredSigned(); got != tt.want {
				t.Errorf("AllRequiredSigned() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	orig := &Contract{
		ID:       "c1",
		Parties:  []Party{{ID: "p1", SignedAt: &now}},
		Tags:     []string{"a"},
		AuditLog: []AuditEntry{{ID: "e1", Details: map[string]any{"k": "v"}}},
	}
	cp := orig.Clone()
	cp.Parties[0].Name = "changed"
	later := now.Add(time.Hour)
	cp.Parties[0].SignedAt = &later
	cp.Tags[0] = "b"
	cp.AuditLog[0].Details["k"] = "changed"

	if orig.Parties[0].Name != "" || !orig.Parties[0].SignedAt.Equal(now) {
		t.Error("Expected parties to be copied")
	}
	if orig.Tags[0] != "a" {
		t.Error("Expected tags to be copied")
	}
	if orig.AuditLog[0].Details["k"] != "v" {
		t.Error("Expected audit details to be copied")
	}
}

func TestCloneKeepsListsEmpty(t *testing.T) {
	cp := (&Contract{ID: "c1"}).Clone()

	data, err := json.Marshal(cp)
	if err != nil {
		t.Fatalf("Failed to marshal contract: %v", err)
	}
	for _, field := range []string{`"parties":[]`, `"signatures":[]`, `"attachments":[]`, `"auditLog":[]`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Expected %s in %s", field, data)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusPendingReview, true},
		{StatusDraft, StatusPendingSignature, true},
		{StatusPendingReview, StatusDraft, false},
		{StatusPartiallySigned, StatusPendingSignature, false},
		{StatusDraft, StatusCompleted, false},
		{StatusPartiallySigned, StatusCompleted, false},
		{StatusDraft, StatusCancelled, true},
		{StatusPartiallySigned, StatusExpired, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusDraft, false},
		{StatusExpired, StatusExpired, true},
		{StatusDraft, "archived", false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanComplete(t *testing.T) {
	if !CanComplete(StatusPendingSignature) || !CanComplete(StatusPartiallySigned) {
		t.Error("Expected signing states to be completable")
	}
	if CanComplete(StatusDraft) || CanComplete(StatusCancelled) {
		t.Error("Expected non-signing states to be rejected")
	}
}

func TestAuditActionDetails(t *testing.T) {
	var action AuditAction = AIAnalyzed{RisksFound: 3, Model: "m"}
	if action.Tag() != ActionAIAnalyzed {
		t.Errorf("Expected ai_analyzed tag, got %s", action.Tag())
	}
	if action.Details()["risksFound"] != 3 {
		t.Errorf("Expected risksFound 3, got %v", action.Details()["risksFound"])
	}

	created := Created{Title: "NDA"}.Details()
	if _, ok := created["templateId"]; ok {
		t.Error("Expected templateId to be omitted when empty")
	}
}
