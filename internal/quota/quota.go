// Package quota guards the pipeline against requests that would overwhelm
// the downstream providers.
package quota

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrQuotaExceeded is matched by every quota violation.
var ErrQuotaExceeded = eris.New("quota exceeded")

// Limits are the configured request ceilings.
type Limits struct {
	MaxAreas   int `json:"max_areas" yaml:"max_areas" mapstructure:"max_areas"`
	MaxPerArea int `json:"max_per_area" yaml:"max_per_area" mapstructure:"max_per_area"`
	MaxTotal   int `json:"max_total" yaml:"max_total" mapstructure:"max_total"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxAreas: 5, MaxPerArea: 50, MaxTotal: 150}
}

// Error describes which limit a request violated.
type Error struct {
	Limit string
	Got   int
	Max   int
}

func (e *Error) Error() string {
	return fmt.Sprintf("quota exceeded: %s %d > %d", e.Limit, e.Got, e.Max)
}

// Is lets errors.Is match ErrQuotaExceeded.
func (e *Error) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Validator rejects oversized requests. It has no side effects.
type Validator struct {
	limits Limits
}

// NewValidator creates a Validator. Zero limits fall back to the defaults.
func NewValidator(l Limits) *Validator {
	d := DefaultLimits()
	if l.MaxAreas <= 0 {
		l.MaxAreas = d.MaxAreas
	}
	if l.MaxPerArea <= 0 {
		l.MaxPerArea = d.MaxPerArea
	}
	if l.MaxTotal <= 0 {
		l.MaxTotal = d.MaxTotal
	}
	return &Validator{limits: l}
}

// Limits returns the effective limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

// Check fails with a *Error when the area count, the per-area cap, or their
// product exceeds the configured maximum.
func (v *Validator) Check(areas, maxPerArea int) error {
	if areas > v.limits.MaxAreas {
		return &Error{Limit: "areas", Got: areas, Max: v.limits.MaxAreas}
	}
	if maxPerArea > v.limits.MaxPerArea {
		return &Error{Limit: "max_per_area", Got: maxPerArea, Max: v.limits.MaxPerArea}
	}
	if total := areas * maxPerArea; total > v.limits.MaxTotal {
		return &Error{Limit: "total_results", Got: total, Max: v.limits.MaxTotal}
	}
	return nil
}
