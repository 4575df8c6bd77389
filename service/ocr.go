package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/effectmoe/contract-system/config"
	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/pkg/logger"
	"github.com/effectmoe/contract-system/pkg/metrics"
)

// TextExtractor turns a scanned page into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, contentType string) (string, error)
}

// OCRClient talks to the Azure Computer Vision Read API (v3.2). Reading is
// asynchronous: the image is submitted, then the operation is polled until
// it finishes.
type OCRClient struct {
	config     *config.OCRConfig
	httpClient *http.Client
}

// readOperation is the polled status of a Read operation.
type readOperation struct {
	Status        string `json:"status"` // notStarted, running, succeeded, failed
	AnalyzeResult struct {
		ReadResults []struct {
			Page  int `json:"page"`
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

type readError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewOCRClient creates a client for the Azure Read API.
func NewOCRClient(cfg *config.OCRConfig) *OCRClient {
	return &OCRClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// ExtractText submits the image and waits for the recognised lines, joined
// by newlines in page order.
func (s *OCRClient) ExtractText(ctx context.Context, image []byte, contentType string) (string, error) {
	if s.config.Endpoint == "" || s.config.APIKey == "" {
		return "", fmt.Errorf("OCR service is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	opURL, err := s.submit(ctx, image)
	if err != nil {
		return "", err
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		op, err := s.poll(ctx, opURL)
		if err != nil {
			return "", err
		}
		switch op.Status {
		case "succeeded":
			return joinLines(op), nil
		case "failed":
			return "", fmt.Errorf("OCR operation failed")
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("OCR operation did not finish: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// submit starts a Read operation and returns its Operation-Location.
func (s *OCRClient) submit(ctx context.Context, image []byte) (string, error) {
	endpoint := strings.TrimRight(s.config.Endpoint, "/") + "/vision/v3.2/read/analyze"
	if s.config.Language != "" {
		endpoint += "?language=" + url.QueryEscape(s.config.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.config.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", readAPIError(resp)
	}
	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return "", fmt.Errorf("OCR API returned no Operation-Location")
	}
	return location, nil
}

func (s *OCRClient) poll(ctx context.Context, opURL string) (*readOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var op readOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &op, nil
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr readError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("OCR API error (status %d): %s", resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("OCR API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func joinLines(op *readOperation) string {
	var b strings.Builder
	for _, page := range op.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(line.Text)
		}
	}
	return b.String()
}

// OCRResult is the outcome of one scanned upload.
type OCRResult struct {
	Text           string         `json:"text"`
	DetectedFields DetectedFields `json:"detectedFields"`
	SourceKey      string         `json:"sourceKey,omitempty"`
	ProcessedAt    time.Time      `json:"processedAt"`
}

// OCRService extracts text from uploaded scans and guesses contract fields.
// When blob storage is available the source image is kept alongside.
type OCRService struct {
	extractor TextExtractor
	blobs     BlobStore
	now       func() time.Time
}

// NewOCRService builds the service; blobs may be nil.
func NewOCRService(extractor TextExtractor, blobs BlobStore) *OCRService {
	return &OCRService{extractor: extractor, blobs: blobs, now: time.Now}
}

// Process runs OCR over image and detects contract fields in the text.
func (s *OCRService) Process(ctx context.Context, filename, contentType string, image []byte) (*OCRResult, error) {
	start := time.Now()
	text, err := s.extractor.ExtractText(ctx, image, contentType)
	metrics.ObserveUpstream(apperr.ServiceOCR, start, err)
	if err != nil {
		logger.Error(ctx, "OCR failed", "filename", filename, "error", err)
		return nil, apperr.Upstream(apperr.ServiceOCR, err)
	}

	result := &OCRResult{
		Text:           text,
		DetectedFields: DetectFields(text),
		ProcessedAt:    s.now(),
	}

	if s.blobs != nil {
		key := fmt.Sprintf("ocr/%s/%s", uuid.NewString(), sanitizeFilename(filename))
		if err := s.blobs.Upload(ctx, key, bytes.NewReader(image), int64(len(image)), contentType); err != nil {
			// The text is what the caller asked for; the archived scan is optional.
			logger.Warn(ctx, "failed to store OCR source image", "key", key, "error", err)
		} else {
			result.SourceKey = key
		}
	}

	logger.Info(ctx, "OCR completed", "filename", filename, "chars", len(text), "type", result.DetectedFields.Type)
	return result, nil
}
