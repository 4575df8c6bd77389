// Package apperr classifies failures into the kinds the HTTP layer renders.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindUpstream    Kind = "upstream"
	KindInternal    Kind = "internal"
)

// User-facing messages.
const (
	MsgRateLimited = "リクエストが多すぎます。しばらくしてから再度お試しください。"
	MsgInternal    = "サーバーエラーが発生しました"
	MsgNotFound    = "契約書が見つかりません"
)

// Upstream service names.
const (
	ServiceAI    = "ai"
	ServiceOCR   = "ocr"
	ServiceEmail = "email"
	ServiceBlob  = "blob"
)

var upstreamMessages = map[string]string{
	ServiceAI:    "AI サービスでエラーが発生しました",
	ServiceOCR:   "OCR サービスでエラーが発生しました",
	ServiceEmail: "メール送信サービスでエラーが発生しました",
	ServiceBlob:  "ファイルストレージでエラーが発生しました",
}

// Error is a classified failure. Message is safe to show to end users;
// the wrapped error only ever reaches the details field.
type Error struct {
	Kind    Kind
	Message string
	Service string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Details returns diagnostic text for the envelope, if any.
func (e *Error) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(message string) error {
	if message == "" {
		message = MsgNotFound
	}
	return &Error{Kind: KindNotFound, Message: message}
}

func RateLimited() error {
	return &Error{Kind: KindRateLimited, Message: MsgRateLimited}
}

// Upstream marks err as a failure of the named external dependency.
func Upstream(service string, err error) error {
	msg, ok := upstreamMessages[service]
	if !ok {
		msg = "外部サービスでエラーが発生しました"
	}
	return &Error{Kind: KindUpstream, Message: msg, Service: service, Err: err}
}

func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: err}
}

// From classifies any error; unclassified errors become internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: err}
}

// KindOf returns the kind of err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsUpstream reports whether err is an upstream failure of service.
func IsUpstream(err error, service string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == KindUpstream && appErr.Service == service
}
