package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
)

const (
	pdfFontFamily = "contract"
	pdfLineHeight = 6.0
)

// PDFRenderer lays out contracts and completion certificates on A4 pages.
type PDFRenderer struct {
	fontPath string
}

// NewPDFRenderer creates a PDF renderer using the configured font, if any.
func NewPDFRenderer(cfg *config.PDFConfig) *PDFRenderer {
	return &PDFRenderer{fontPath: cfg.FontPath}
}

// document wraps fpdf with the font choice made once per file.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	fam string
}

func (r *PDFRenderer) newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(title, true)
	pdf.SetCreator("contract-system", true)

	d := &document{pdf: pdf, tr: func(s string) string { return s }, fam: pdfFontFamily}
	if r.fontPath != "" {
		pdf.AddUTF8Font(pdfFontFamily, "", r.fontPath)
	} else {
		// Core fonts only cover cp1252.
		d.fam = "Helvetica"
		d.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		d.font(8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()
	return d
}

func (d *document) font(size float64) {
	d.pdf.SetFont(d.fam, "", size)
}

func (d *document) heading(text string, size float64) {
	d.font(size)
	d.pdf.CellFormat(0, size*0.6, d.tr(text), "", 1, "C", false, 0, "")
	d.pdf.Ln(4)
}

func (d *document) row(label, value string) {
	d.font(10)
	d.pdf.CellFormat(45, pdfLineHeight, d.tr(label), "1", 0, "L", false, 0, "")
	d.pdf.MultiCell(0, pdfLineHeight, d.tr(value), "1", "L", false)
}

func (d *document) paragraph(text string) {
	d.font(10.5)
	d.pdf.MultiCell(0, pdfLineHeight, d.tr(text), "", "L", false)
}

func (d *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Contract renders the contract body with its parties and signatures.
func (r *PDFRenderer) Contract(c *model.Contract) ([]byte, error) {
	d := r.newDocument(c.Title)

	d.heading(c.Title, 18)
	d.row("契約ID", c.ID)
	d.row("種別", string(c.Type))
	d.row("ステータス", string(c.Status))
	d.row("作成日", formatDate(c.CreatedAt))
	if c.Amount > 0 {
		d.row("契約金額", formatNumber(c.Amount)+" 円")
	}
	d.pdf.Ln(6)

	d.paragraph(c.Content)
	d.pdf.Ln(6)

	if len(c.Parties) > 0 {
		d.heading("当事者", 12)
		for _, p := range c.Parties {
			signed := "未署名"
			if p.SignedAt != nil {
				signed = "署名済 " + formatDateTime(*p.SignedAt)
			} else if !p.SignatureRequired {
				signed = "署名不要"
			}
			d.row(partyLabel(p), fmt.Sprintf("%s <%s> %s", p.Name, p.Email, signed))
		}
	}
	return d.bytes()
}

// Certificate renders the signature completion certificate. Only completed
// contracts have one.
func (r *PDFRenderer) Certificate(c *model.Contract) ([]byte, error) {
	if c.Status != model.StatusCompleted {
		return nil, apperr.Validation("署名が完了していない契約書の証明書は発行できません")
	}

	d := r.newDocument("電子署名完了証明書 " + c.Title)
	d.heading("電子署名完了証明書", 18)
	d.paragraph("以下の契約書について、全ての当事者による電子署名が完了したことを証明します。")
	d.pdf.Ln(4)

	d.row("契約書名", c.Title)
	d.row("契約ID", c.ID)
	d.row("本文ハッシュ", contentDigest(c.Content))
	d.row("完了日時", formatDateTime(c.UpdatedAt))
	d.pdf.Ln(6)

	d.heading("署名記録", 12)
	for _, s := range c.Signatures {
		d.row("署名者", fmt.Sprintf("%s <%s>", s.SignerName, s.SignerEmail))
		d.row("署名日時", formatDateTime(s.SignedAt))
		d.row("IPアドレス", s.IPAddress)
		d.row("検証ハッシュ", s.VerificationHash)
		d.pdf.Ln(3)
	}
	return d.bytes()
}

func partyLabel(p model.Party) string {
	if p.Company != "" {
		return p.Company
	}
	if p.Type == model.RoleClient {
		return "委託者"
	}
	return "受託者"
}

var jst = time.FixedZone("JST", 9*60*60)

func formatDate(t time.Time) string {
	return t.In(jst).Format("2006年01月02日")
}

func formatDateTime(t time.Time) string {
	return t.In(jst).Format("2006年01月02日 15:04:05 MST")
}

// DocumentService serves rendered documents for stored contracts. Rendered
// certificates are archived in blob storage when it is available.
type DocumentService struct {
	repo     *ContractRepository
	renderer *PDFRenderer
	blobs    BlobStore
}

// NewDocumentService creates the contract PDF and certificate service; blobs may be nil.
func NewDocumentService(repo *ContractRepository, renderer *PDFRenderer, blobs BlobStore) *DocumentService {
	return &DocumentService{repo: repo, renderer: renderer, blobs: blobs}
}

// Document is a rendered file ready to be sent to a client.
type Document struct {
	Filename string
	Data     []byte
}

func (s *DocumentService) ContractPDF(ctx context.Context, id string) (*Document, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Contract(c)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Document{Filename: "contract-" + c.ID + ".pdf", Data: data}, nil
}

func (s *DocumentService) Certificate(ctx context.Context, id string) (*Document, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Certificate(c)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return nil, err
		}
		return nil, apperr.Internal(err)
	}

	if s.blobs != nil {
		key := fmt.Sprintf("documents/%s/certificate.pdf", c.ID)
		if err := s.blobs.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/pdf"); err != nil {
			logger.Warn(ctx, "failed to archive certificate", "contract_id", c.ID, "error", err)
		}
	}
	return &Document{Filename: "certificate-" + c.ID + ".pdf", Data: data}, nil
}

// contentDigest is the SHA-256 of the signed text, printed so a paper copy
// can be checked against the stored contract.
func contentDigest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
