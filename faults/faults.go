// Package faults is the error taxonomy shared by the cache pipeline.
// Every failure that crosses the coordinator boundary is a *Record so
// callers and the logger get kind, severity and retryability without
// per-call-site bookkeeping.
package faults

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindAPI        Kind = "api"
	KindCache      Kind = "cache"
	KindValidation Kind = "validation"
	KindPermission Kind = "permission"
	KindRateLimit  Kind = "rate_limit"
	KindUnknown    Kind = "unknown"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// defaults carries the per-kind severity and retryability. Transient
// transport failures retry; anything where a retry cannot change the
// outcome does not.
var defaults = map[Kind]struct {
	severity  Severity
	retryable bool
}{
	KindNetwork:    {SeverityMedium, true},
	KindTimeout:    {SeverityMedium, true},
	KindRateLimit:  {SeverityLow, true},
	KindAPI:        {SeverityHigh, false},
	KindCache:      {SeverityMedium, false},
	KindValidation: {SeverityLow, false},
	KindPermission: {SeverityHigh, false},
	KindUnknown:    {SeverityHigh, false},
}

// Record is a classified failure with the context needed for log
// correlation.
type Record struct {
	Kind       Kind
	Severity   Severity
	Retryable  bool
	Op         string
	DID        string
	OpID       string
	RetryCount int
	RetryAfter time.Duration // server-provided wait hint, rate limits only
	Time       time.Time
	Err        error
}

func New(kind Kind, op string, did string, err error) *Record {
	d := defaults[kind]
	return &Record{
		Kind:      kind,
		Severity:  d.severity,
		Retryable: d.retryable,
		Op:        op,
		DID:       did,
		OpID:      uuid.NewString(),
		Time:      time.Now(),
		Err:       err,
	}
}

// From returns err as a *Record, classifying untyped errors on the way.
func From(err error, op string, did string) *Record {
	var rec *Record
	if errors.As(err, &rec) {
		return rec
	}
	return New(Classify(err), op, did, err)
}

func (r *Record) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s error: %v", r.Op, r.Kind, r.Err)
	}
	return fmt.Sprintf("%s: %s error", r.Op, r.Kind)
}

func (r *Record) Unwrap() error {
	return r.Err
}

// Fields returns the record as log context.
func (r *Record) Fields() map[string]any {
	f := map[string]any{
		"kind":      string(r.Kind),
		"severity":  string(r.Severity),
		"retryable": r.Retryable,
		"op":        r.Op,
		"op_id":     r.OpID,
	}
	if r.DID != "" {
		f["did"] = r.DID
	}
	if r.RetryCount > 0 {
		f["retry_count"] = r.RetryCount
	}
	return f
}
