package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
)

func completedContract() *model.Contract {
	signed := time.Date(2025, 4, 1, 1, 0, 0, 0, time.UTC)
	return &model.Contract{
		ID:      "c-1",
		Title:   "Service Agreement",
		Content: "Article 1. The vendor shall deliver the system.",
		Type:    model.TypeService,
		Status:  model.StatusCompleted,
		Amount:  1200000,
		Parties: []model.Party{
			{ID: "p-1", Type: model.RoleClient, Name: "Client", Email: "client@example.com", SignatureRequired: true, SignedAt: &signed},
		},
		Signatures: []model.Signature{
			{ID: "s-1", PartyID: "p-1", SignerName: "Client", SignerEmail: "client@example.com", SignedAt: signed, VerificationHash: "abc", IPAddress: "10.0.0.1"},
		},
		CreatedAt: signed.Add(-time.Hour),
		UpdatedAt: signed,
	}
}

func TestPDFRendererContract(t *testing.T) {
	data, err := NewPDFRenderer(&config.PDFConfig{}).Contract(completedContract())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestPDFRendererCertificate(t *testing.T) {
	r := NewPDFRenderer(&config.PDFConfig{})

	data, err := r.Certificate(completedContract())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	draft := completedContract()
	draft.Status = model.StatusPartiallySigned
	_, err = r.Certificate(draft)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPDFRendererMissingFont(t *testing.T) {
	_, err := NewPDFRenderer(&config.PDFConfig{FontPath: "/nonexistent/font.ttf"}).Contract(completedContract())
	assert.Error(t, err)
}

func TestDocumentService(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, completedContract())
	blobs := &memoryBlobs{}
	svc := NewDocumentService(repo, NewPDFRenderer(&config.PDFConfig{}), blobs)

	doc, err := svc.ContractPDF(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "contract-c-1.pdf", doc.Filename)

	cert, err := svc.Certificate(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "certificate-c-1.pdf", cert.Filename)
	assert.Equal(t, cert.Data, blobs.objects["documents/c-1/certificate.pdf"])

	_, err = svc.ContractPDF(ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestContentDigest(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", contentDigest(""))
}
