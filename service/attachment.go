package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
	"github.com/effectmoe/contract-system/pkg/metrics"
)

var errBlobsDisabled = errors.New("blob storage is not configured")

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentService stores contract attachments in blob storage and keeps
// their metadata on the contract.
type AttachmentService struct {
	repo  *ContractRepository
	audit *AuditAppender
	blobs BlobStore
	now   func() time.Time
	newID func() string
}

// NewAttachmentService builds the service; blobs may be nil, in which case
// every call fails with a blob upstream error.
func NewAttachmentService(repo *ContractRepository, audit *AuditAppender, blobs BlobStore) *AttachmentService {
	return &AttachmentService{
		repo:  repo,
		audit: audit,
		blobs: blobs,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Add uploads f and appends it to the contract's attachments.
func (s *AttachmentService) Add(ctx context.Context, contractID string, f Upload, actor string) (*model.Attachment, error) {
	if s.blobs == nil {
		return nil, apperr.Upstream(apperr.ServiceBlob, errBlobsDisabled)
	}

	unlock := s.repo.Lock(contractID)
	defer unlock()

	c, err := s.repo.Get(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.Status == model.StatusCancelled || c.Status == model.StatusExpired {
		return nil, apperr.Validation("%s の契約書には添付できません", c.Status)
	}

	att := model.Attachment{
		ID:          s.newID(),
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        f.Size,
		UploadedBy:  actor,
		UploadedAt:  s.now(),
	}
	att.ObjectKey = fmt.Sprintf("attachments/%s/%s/%s", contractID, att.ID, sanitizeFilename(f.Filename))

	start := time.Now()
	err = s.blobs.Upload(ctx, att.ObjectKey, f.Body, f.Size, f.ContentType)
	metrics.ObserveUpstream(apperr.ServiceBlob, start, err)
	if err != nil {
		logger.Error(ctx, "attachment upload failed", "contract_id", contractID, "error", err)
		return nil, apperr.Upstream(apperr.ServiceBlob, err)
	}

	attachments := append(c.Attachments, att)
	updated, err := s.repo.Update(context.WithoutCancel(ctx), contractID, ContractPatch{Attachments: &attachments})
	if err == nil && updated == nil {
		err = apperr.NotFound("")
	}
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), att.ObjectKey); delErr != nil {
			logger.Warn(ctx, "failed to remove orphaned attachment", "key", att.ObjectKey, "error", delErr)
		}
		return nil, err
	}

	s.audit.Append(ctx, contractID, model.Attached{AttachmentID: att.ID, Filename: att.Filename, Size: att.Size}, actor)
	logger.Info(ctx, "attachment added", "contract_id", contractID, "attachment_id", att.ID, "size", att.Size)
	return &att, nil
}

// URL returns a time-limited download URL for an attachment.
func (s *AttachmentService) URL(ctx context.Context, contractID, attachmentID string) (string, error) {
	if s.blobs == nil {
		return "", apperr.Upstream(apperr.ServiceBlob, errBlobsDisabled)
	}

	c, err := s.repo.Get(ctx, contractID)
	if err != nil {
		return "", err
	}
	for _, a := range c.Attachments {
		if a.ID != attachmentID {
			continue
		}
		u, err := s.blobs.PresignedURL(ctx, a.ObjectKey)
		if err != nil {
			return "", apperr.Upstream(apperr.ServiceBlob, err)
		}
		return u, nil
	}
	return "", apperr.NotFound("添付ファイルが見つかりません")
}
