// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeVaultMissing        Code = "vault.path.missing"
	CodeVaultWalkFailure    Code = "vault.walk.failure"
	CodeVaultFileReadFailed Code = "vault.file.read_failure"

	CodeEmbedUnavailable  Code = "embed.provider.unavailable"
	CodeEmbedInvalidInput Code = "embed.request.invalid_input"
	CodeEmbedDimMismatch  Code = "embed.response.dimension_mismatch"

	CodeStoreDatabaseFailure Code = "store.database.failure"
	CodeStoreInvalidInput    Code = "store.record.invalid_input"
	CodeStoreNotFound        Code = "store.record.not_found"

	CodeIndexFileFailed   Code = "index.file.failure"
	CodeIndexPassFailure  Code = "index.pass.failure"
	CodeManifestIOFailure Code = "index.manifest.io_failure"

	CodeGenerateUnavailable  Code = "generate.upstream.unavailable"
	CodeGenerateStreamBroken Code = "generate.stream.broken"

	CodeServerRequestInvalid  Code = "server.request.invalid_input"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"

	CodeConfigLoadFailure  Code = "config.load.failure"
	CodeConfigInvalidValue Code = "config.validate.invalid_value"
	CodeCLISetupFailure    Code = "cli.setup.failure"
	CodeClientCancelled    Code = "client.connection.cancelled"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

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

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Category maps an error to the wire-level category surfaced to clients
// on the SSE stream and in HTTP error bodies.
func Category(err error) string {
	switch CodeOf(err) {
	case CodeVaultMissing:
		return "vault_missing"
	case CodeEmbedUnavailable, CodeEmbedDimMismatch:
		return "embedder_unavailable"
	case CodeGenerateUnavailable:
		return "llm_unavailable"
	case CodeGenerateStreamBroken:
		return "generation_stream_broken"
	case CodeIndexFileFailed:
		return "indexing_file_failed"
	case CodeServerRequestInvalid, CodeConfigInvalidValue, CodeEmbedInvalidInput, CodeStoreInvalidInput:
		return "malformed_request"
	case CodeClientCancelled:
		return "client_cancelled"
	default:
		return "internal_error"
	}
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid_input" || r == "invalid_value"
}

func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "unavailable"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case HasCode(err, CodeGenerateUnavailable):
		return http.StatusServiceUnavailable
	case IsUnavailable(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
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
