// Package errors provides error handling for airstat.
//
// It re-exports github.com/cockroachdb/errors so that every failure carries a
// stack trace and, where useful, a user-facing hint:
//
//	if len(data) == 0 {
//	    return errors.WithHint(
//	        errors.Wrap(errors.ErrInvalidInput, "bootstrap over empty column"),
//	        "filter nulls and check the selection is not empty")
//	}
//
// Callers classify failures with errors.Is against the sentinels below.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors of the statistics core. Wrap them with Wrap/Wrapf to add
// context; errors.Is still matches through the wrapping.
var (
	// ErrInvalidInput indicates a statistic was requested over data that
	// cannot define it (empty column, bad parameter, too few paired rows).
	ErrInvalidInput = New("invalid input")

	// ErrNumericalDegeneracy indicates the computation is undefined for the
	// given data (zero variance, zero grand total).
	ErrNumericalDegeneracy = New("numerical degeneracy")

	// ErrMissingJoinKey indicates a source table lacks the (date, site) join
	// columns or holds a blank key cell.
	ErrMissingJoinKey = New("missing join key")

	// ErrStaleUpstream indicates the merged artifact does not exist or cannot
	// be parsed. It is never recovered by re-merging implicitly.
	ErrStaleUpstream = New("stale or missing upstream file")
)

// IsInvalidInput checks if an error is or wraps ErrInvalidInput
func IsInvalidInput(err error) bool {
	return err != nil && Is(err, ErrInvalidInput)
}

// IsNumericalDegeneracy checks if an error is or wraps ErrNumericalDegeneracy
func IsNumericalDegeneracy(err error) bool {
	return err != nil && Is(err, ErrNumericalDegeneracy)
}

// IsMissingJoinKey checks if an error is or wraps ErrMissingJoinKey
func IsMissingJoinKey(err error) bool {
	return err != nil && Is(err, ErrMissingJoinKey)
}

// IsStaleUpstream checks if an error is or wraps ErrStaleUpstream
func IsStaleUpstream(err error) bool {
	return err != nil && Is(err, ErrStaleUpstream)
}

// InvalidInputf wraps ErrInvalidInput with a formatted message.
func InvalidInputf(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidInput, format, args...)
}

// Degeneracyf wraps ErrNumericalDegeneracy with a formatted message.
func Degeneracyf(format string, args ...interface{}) error {
	return Wrapf(ErrNumericalDegeneracy, format, args...)
}
