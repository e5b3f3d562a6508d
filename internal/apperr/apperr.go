// Package apperr defines the coded errors shared by the ingestion, retrieval
// and conversation layers, and their mapping onto HTTP statuses.
package apperr

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is a dotted identifier. The last segment is the reason and drives
// classification (not_found, invalid, timeout, failure).
type Code string

const (
	CodeIngestFormatUnsupported Code = "ingest.format.unsupported"
	CodeIngestContentEmpty      Code = "ingest.content.empty"
	CodeIngestExtractFailure    Code = "ingest.extract.failure"
	CodeIngestStrategyInvalid   Code = "ingest.strategy.invalid"
	CodeIngestParamsInvalid     Code = "ingest.params.invalid"

	CodeIndexUpstreamFailure     Code = "index.upstream.failure"
	CodeIndexDimensionInvalid    Code = "index.dimension.invalid"
	CodeEmbedderUpstreamFailure  Code = "embedder.upstream.failure"
	CodeGeneratorUpstreamFailure Code = "generator.upstream.failure"
	CodeGeneratorTimeout         Code = "generator.request.timeout"

	CodeConversationStoreFailure Code = "conversation.store.upstream.failure"
	CodeConversationNotFound     Code = "conversation.lookup.not_found"

	CodeStorageDatabaseFailure Code = "storage.database.failure"
	CodeEventPublishFailure    Code = "events.publish.upstream.failure"

	CodeRequestInvalid  Code = "request.input.invalid"
	CodeInternalFailure Code = "server.internal.failure"
)

type Attr struct {
	Key   string
	Value any
}

func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

// Wrap attaches code to err. If err already carries a code, the innermost
// code keeps winning in CodeOf.
func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}
	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}
	if oopsErr.Code() == nil {
		return ""
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "unsupported"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// IsRetryable reports whether the caller may repeat the same request unchanged.
func IsRetryable(err error) bool {
	return IsTimeout(err) || IsUpstreamFailure(err)
}

func HTTPStatus(err error) int {
	switch {
	case HasCode(err, CodeIngestFormatUnsupported):
		return http.StatusUnsupportedMediaType
	case HasCode(err, CodeIngestExtractFailure), HasCode(err, CodeIngestContentEmpty):
		return http.StatusUnprocessableEntity
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeInternalFailure).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
