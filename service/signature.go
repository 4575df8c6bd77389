package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
	"github.com/effectmoe/contract-system/pkg/metrics"
)

// SignInput is one party's signature request.
type SignInput struct {
	PartyID   string
	Name      string
	Email     string
	IPAddress string
	UserAgent string
}

// SignatureService runs the send-for-signature and signing workflow. It
// holds the repository's per-contract lock for each read-check-write.
type SignatureService struct {
	repo    *ContractRepository
	audit   *AuditAppender
	mailer  Mailer
	baseURL string
	now     func() time.Time
	newID   func() string
}

// NewSignatureService creates the signing workflow service.
func NewSignatureService(repo *ContractRepository, audit *AuditAppender, mailer Mailer, baseURL string) *SignatureService {
	return &SignatureService{
		repo:    repo,
		audit:   audit,
		mailer:  mailer,
		baseURL: baseURL,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SendForSignature emails every party that still has to sign and moves the
// contract to pending_signature. Sending again from pending_signature or
// partially_signed acts as a reminder and leaves the status alone.
func (s *SignatureService) SendForSignature(ctx context.Context, id, actor string) (*model.Contract, error) {
	unlock := s.repo.Lock(id)
	defer unlock()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case model.StatusDraft, model.StatusPendingReview, model.StatusPendingSignature, model.StatusPartiallySigned:
	default:
		return nil, apperr.Validation("%s の契約書は署名依頼できません", c.Status)
	}

	var pending []model.Party
	for _, p := range c.Parties {
		if p.SignatureRequired && p.SignedAt == nil {
			if p.Email == "" {
				return nil, apperr.Validation("当事者 %s のメールアドレスがありません", p.Name)
			}
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil, apperr.Validation("署名が必要な当事者がいません")
	}

	recipients := make([]string, 0, len(pending))
	for _, p := range pending {
		email, err := signatureRequestEmail(c, p, s.baseURL)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		start := time.Now()
		err = s.mailer.Send(ctx, email)
		metrics.ObserveUpstream(apperr.ServiceEmail, start, err)
		if err != nil {
			logger.Error(ctx, "failed to send signature request", "contract_id", id, "party_id", p.ID, "error", err)
			return nil, apperr.Upstream(apperr.ServiceEmail, err)
		}
		recipients = append(recipients, p.Email)
	}

	updated := c
	if !c.Status.Signing() && c.Status != model.StatusPendingSignature {
		next := model.StatusPendingSignature
		updated, err = s.repo.Update(ctx, id, ContractPatch{Status: &next})
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, apperr.NotFound("")
		}
	}

	s.audit.Append(ctx, id, model.Sent{Recipients: recipients}, actor)
	if updated.Status != c.Status {
		s.audit.Append(ctx, id, model.StatusChanged{From: c.Status, To: updated.Status}, actor)
	}
	logger.Info(ctx, "signature requested", "contract_id", id, "recipients", len(recipients))
	return updated, nil
}

// Sign records a party's signature. The contract becomes completed once
// every party that must sign has signed.
func (s *SignatureService) Sign(ctx context.Context, id string, in SignInput, actor string) (*model.Contract, error) {
	unlock := s.repo.Lock(id)
	defer unlock()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusPendingSignature && c.Status != model.StatusPartiallySigned {
		return nil, apperr.Validation("%s の契約書には署名できません", c.Status)
	}

	party, ok := c.FindParty(in.PartyID)
	if !ok {
		return nil, apperr.Validation("当事者が見つかりません")
	}
	if !party.SignatureRequired {
		return nil, apperr.Validation("この当事者の署名は不要です")
	}
	if party.SignedAt != nil {
		return nil, apperr.Validation("この当事者は既に署名済みです")
	}
	if !strings.EqualFold(strings.TrimSpace(in.Email), party.Email) {
		return nil, apperr.Validation("メールアドレスが当事者の登録内容と一致しません")
	}

	now := s.now().UTC()
	sig := model.Signature{
		ID:               s.newID(),
		PartyID:          party.ID,
		SignerName:       in.Name,
		SignerEmail:      party.Email,
		SignedAt:         now,
		VerificationHash: VerificationHash(c.ID, party.ID, party.Email, now, c.Content),
		IPAddress:        in.IPAddress,
		UserAgent:        in.UserAgent,
	}
	signedAt := now
	party.SignedAt = &signedAt
	signatures := append(c.Signatures, sig)

	next := model.StatusPartiallySigned
	if c.AllRequiredSigned() && model.CanComplete(c.Status) {
		next = model.StatusCompleted
	}

	// The signature is bound to the party's consent; do not lose it to a
	// client disconnect.
	persistCtx := context.WithoutCancel(ctx)
	updated, err := s.repo.Update(persistCtx, id, ContractPatch{
		Parties:    &c.Parties,
		Signatures: &signatures,
		Status:     &next,
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("")
	}

	s.audit.Append(persistCtx, id, model.Signed{
		PartyID:          party.ID,
		SignerEmail:      party.Email,
		VerificationHash: sig.VerificationHash,
		IPAddress:        in.IPAddress,
	}, actor)
	if next != c.Status {
		s.audit.Append(persistCtx, id, model.StatusChanged{From: c.Status, To: next}, actor)
	}
	if next == model.StatusCompleted {
		s.audit.Append(persistCtx, id, model.Completed{SignatureCount: len(signatures)}, actor)
		logger.Info(ctx, "contract completed", "contract_id", id, "signatures", len(signatures))
	}
	return updated, nil
}

// VerificationHash fingerprints a signature over the signed content.
func VerificationHash(contractID, partyID, email string, signedAt time.Time, content string) string {
	h := sha256.New()
	for _, part := range []string{contractID, partyID, strings.ToLower(email), signedAt.UTC().Format(time.RFC3339Nano), content} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature recomputes a signature's hash against the contract.
func VerifySignature(c *model.Contract, sig model.Signature) bool {
	return VerificationHash(c.ID, sig.PartyID, sig.SignerEmail, sig.SignedAt, c.Content) == sig.VerificationHash
}
