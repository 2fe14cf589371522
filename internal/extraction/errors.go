package extraction

import (
	"errors"
	"fmt"
	"strings"
)

// OracleErrorKind classifies a failed call to the AI extraction oracle.
// Each kind gets different user-facing guidance: auth failures need
// reconfiguration, quota failures a later retry, model failures another
// model, network failures a connectivity check.
type OracleErrorKind string

const (
	OracleAuth             OracleErrorKind = "auth"
	OracleQuota            OracleErrorKind = "quota"
	OracleModelUnavailable OracleErrorKind = "model_unavailable"
	OracleNetwork          OracleErrorKind = "network"
	OracleMalformed        OracleErrorKind = "malformed_response"
)

// OracleError wraps an oracle failure with its classification and the
// model that produced it
type OracleError struct {
	Kind  OracleErrorKind
	Model string
	Err   error
}

func (e *OracleError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("extraction oracle (%s, model %s): %v", e.Kind, e.Model, e.Err)
	}
	return fmt.Sprintf("extraction oracle (%s): %v", e.Kind, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// IsRetryableOracleError reports whether the failure is transient: the user
// may retry without reconfiguring anything
func IsRetryableOracleError(err error) bool {
	var oe *OracleError
	if !errors.As(err, &oe) {
		return false
	}
	return oe.Kind == OracleQuota || oe.Kind == OracleNetwork
}

// ClassifyOracleError wraps err as an OracleError, inferring the kind from
// the error text when the SDK does not expose a structured status
func ClassifyOracleError(model string, err error) *OracleError {
	var oe *OracleError
	if errors.As(err, &oe) {
		return oe
	}

	msg := strings.ToLower(err.Error())
	kind := OracleNetwork

	switch {
	case strings.Contains(msg, "api key") ||
		strings.Contains(msg, "api_key") ||
		strings.Contains(msg, "401") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "permission"):
		kind = OracleAuth
	case strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429"):
		kind = OracleQuota
	case strings.Contains(msg, "not found") ||
		strings.Contains(msg, "404") ||
		strings.Contains(msg, "does not exist"):
		kind = OracleModelUnavailable
	}

	return &OracleError{Kind: kind, Model: model, Err: err}
}
