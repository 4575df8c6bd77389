package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/effectmoe/contract-system/pkg/apperr"
	"github.com/effectmoe/contract-system/service"
)

// MaxUploadSize bounds OCR images and attachments.
const MaxUploadSize = 10 << 20

var ocrImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/tiff": true,
	"image/bmp":  true,
}

type OCRHandler struct {
	ocr *service.OCRService
}

// NewOCRHandler creates a new OCR upload handler.
func NewOCRHandler(ocr *service.OCRService) *OCRHandler {
	return &OCRHandler{ocr: ocr}
}

// Upload extracts text from a scanned contract and guesses its fields.
func (h *OCRHandler) Upload(c *gin.Context) {
	up, ok := readUpload(c)
	if !ok {
		return
	}
	defer up.Close()

	data, err := io.ReadAll(up.Body)
	if err != nil {
		respondError(c, apperr.Validation("ファイルを読み込めませんでした"))
		return
	}
	contentType := imageContentType(up.ContentType, data)
	if !ocrImageTypes[contentType] {
		respondError(c, apperr.Validation("対応していないファイル形式です (JPEG, PNG, TIFF, BMP のみ)"))
		return
	}

	result, err := h.ocr.Process(c.Request.Context(), up.Filename, contentType, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// imageContentType trusts the declared type when it is a supported image
// and sniffs the bytes otherwise.
func imageContentType(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		mt = strings.ToLower(mt)
		if mt == "image/jpg" {
			mt = "image/jpeg"
		}
		if ocrImageTypes[mt] {
			return mt
		}
	}
	return http.DetectContentType(data)
}

type multipartUpload struct {
	service.Upload
	Close func() error
}

// readUpload opens the "file" form field, rejecting anything above
// MaxUploadSize before it is read.
func readUpload(c *gin.Context) (*multipartUpload, bool) {
	// Leave room for the multipart framing around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperr.Validation("ファイルサイズは 10MB 以下にしてください"))
			return nil, false
		}
		respondError(c, apperr.Validation("ファイルが指定されていません"))
		return nil, false
	}
	if header.Size > MaxUploadSize {
		file.Close()
		respondError(c, apperr.Validation("ファイルサイズは 10MB 以下にしてください"))
		return nil, false
	}

	return &multipartUpload{
		Upload: service.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		},
		Close: file.Close,
	}, true
}
