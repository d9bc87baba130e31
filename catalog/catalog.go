/*
Package catalog provides the procedure catalog: the read-only source of
truth for CDT procedure codes.

PURPOSE:
  Maps a CDT code (e.g. "D2391") to its description, category, base fee,
  structural requirements (tooth/surface/quadrant) and fallback coverage
  fraction. Everything downstream - coverage rules, frequency limits,
  fee estimation - keys off this catalog.

KEY CONCEPTS IN THIS FILE (catalog.go):
  - Category: The fixed set of dental procedure categories
  - ProcedureCode: One immutable catalog entry
  - Catalog: Versioned code -> entry lookup with fee helpers

DESIGN PRINCIPLES:
  1. Immutability: entries are loaded once from versioned reference data
     and never mutated
  2. Precision: fees are decimal.Decimal, never float64
  3. Local recovery: the only failure mode is "unknown code"; no side
     effects, no I/O

SURFACE SCALING:
  Surface-dependent fees scale by a fixed multiplier per extra surface.
  Surfaces beyond the code's MaxSurfaces are silently clamped - a request
  for 5 surfaces on a 4-surface code bills as 4. Clamping rather than
  erroring keeps estimation total-preserving for malformed charting data.

SEE ALSO:
  - reference.go: The versioned reference code set
  - plan: Coverage rules resolved per code/category
  - coverage: The validator consuming catalog lookups
*/
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORY - Fixed set of procedure categories
// =============================================================================

type Category string

const (
	Diagnostic    Category = "diagnostic"
	Preventive    Category = "preventive"
	Restorative   Category = "restorative"
	Endodontic    Category = "endodontic"
	Periodontic   Category = "periodontic"
	Prosthodontic Category = "prosthodontic"
	OralSurgery   Category = "oral_surgery"
	Orthodontic   Category = "orthodontic"
)

// Categories lists every valid category, in catalog order.
func Categories() []Category {
	return []Category{
		Diagnostic, Preventive, Restorative, Endodontic,
		Periodontic, Prosthodontic, OralSurgery, Orthodontic,
	}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case Diagnostic, Preventive, Restorative, Endodontic,
		Periodontic, Prosthodontic, OralSurgery, Orthodontic:
		return true
	}
	return false
}

// =============================================================================
// PROCEDURE CODE - One immutable catalog entry
// =============================================================================

// ProcedureCode describes a single billable CDT procedure.
type ProcedureCode struct {
	Code        string
	Description string
	Category    Category

	// BaseFee is the single-surface (or surface-independent) fee.
	BaseFee decimal.Decimal

	// Structural requirements for a valid claim line.
	RequiresTooth    bool
	RequiresSurface  bool
	RequiresQuadrant bool

	// MaxSurfaces caps surface-dependent fee scaling. Zero for codes
	// with no surface component.
	MaxSurfaces int

	// FallbackFraction is the coverage fraction used for plan-free quick
	// estimates only. The rules engine never reads it.
	FallbackFraction decimal.Decimal
}

// =============================================================================
// CATALOG - Versioned lookup
// =============================================================================

// SurfaceMultiplier is the fee increment per surface beyond the first:
// fee(n) = base * (1 + SurfaceMultiplier*(n-1)).
var SurfaceMultiplier = decimal.RequireFromString("0.25")

// Catalog is a read-only code lookup. Safe for concurrent use: the
// underlying map is never written after construction.
type Catalog struct {
	version string
	codes   map[string]ProcedureCode
}

// New builds a catalog from a version tag and a set of entries.
// Later duplicates of the same code win, matching reference-data
// override semantics.
func New(version string, entries []ProcedureCode) *Catalog {
	codes := make(map[string]ProcedureCode, len(entries))
	for _, e := range entries {
		codes[normalize(e.Code)] = e
	}
	return &Catalog{version: version, codes: codes}
}

// Version returns the reference-data version tag.
func (c *Catalog) Version() string { return c.version }

// Lookup resolves a CDT code. The boolean is false for unknown codes.
func (c *Catalog) Lookup(code string) (ProcedureCode, bool) {
	p, ok := c.codes[normalize(code)]
	return p, ok
}

// Codes returns all entries sorted by code.
func (c *Catalog) Codes() []ProcedureCode {
	out := make([]ProcedureCode, 0, len(c.codes))
	for _, p := range c.codes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Fee returns the fee for a code billed with the given surface count.
// Surface count is clamped to [1, MaxSurfaces] for surface-dependent
// codes and ignored otherwise.
func (c *Catalog) Fee(code string, surfaces int) (decimal.Decimal, error) {
	p, ok := c.Lookup(code)
	if !ok {
		return decimal.Zero, &UnknownCodeError{Code: code}
	}
	if !p.RequiresSurface || p.MaxSurfaces <= 1 {
		return p.BaseFee, nil
	}
	if surfaces < 1 {
		surfaces = 1
	}
	if surfaces > p.MaxSurfaces {
		surfaces = p.MaxSurfaces
	}
	extra := decimal.NewFromInt(int64(surfaces - 1)).Mul(SurfaceMultiplier)
	return p.BaseFee.Mul(decimal.NewFromInt(1).Add(extra)), nil
}

// QuickEstimate splits a cost between insurer and patient using the
// code's fallback fraction. This is the plan-free estimate path for
// patients with no plan on file; the rules engine in coverage is the
// real computation.
func (c *Catalog) QuickEstimate(code string, cost decimal.Decimal) (insurer, patient decimal.Decimal, err error) {
	p, ok := c.Lookup(code)
	if !ok {
		return decimal.Zero, cost, &UnknownCodeError{Code: code}
	}
	insurer = cost.Mul(p.FallbackFraction)
	return insurer, cost.Sub(insurer), nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// =============================================================================
// ERRORS
// =============================================================================

// UnknownCodeError is returned when a code is absent from the catalog.
// Validators recover from it locally; it never aborts a plan pass.
type UnknownCodeError struct {
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown CDT code: %q", e.Code)
}
