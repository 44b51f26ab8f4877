// Package validate turns raw extraction JSON into a typed, vetted payload.
// Structural problems degrade to warnings rather than failures: the
// pipeline surfaces partial data for human review instead of losing the
// document. Raw untyped JSON never travels past this boundary.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates and reconciles extracted payloads.
type Validator struct {
	schemas   schemaRegistry
	tolerance float64
}

// DefaultTolerance is the relative difference allowed between a declared
// total and the sum of its line items.
const DefaultTolerance = 0.05

// New creates a Validator with the given reconciliation tolerance.
// A non-positive tolerance falls back to DefaultTolerance.
func New(tolerance float64) (*Validator, error) {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	reg, err := newSchemaRegistry()
	if err != nil {
		return nil, err
	}
	return &Validator{schemas: reg, tolerance: tolerance}, nil
}

// Input carries one extraction attempt into validation.
type Input struct {
	Raw        json.RawMessage
	DocType    domain.DocumentType
	SourceFile string
	Pages      int

	// LowConfidenceType is set when the classifier fell back; it forces
	// review even if the payload itself validates cleanly.
	LowConfidenceType bool
}

// Validate runs structural validation, numeric reconciliation, and
// identifier normalization. It always returns a payload; fatal conditions
// are expressed as ReviewRequired plus warnings, never as an error.
func (v *Validator) Validate(in Input) *domain.ExtractedPayload {
	p := &domain.ExtractedPayload{
		DocType: in.DocType,
		Raw:     in.Raw,
	}

	if in.LowConfidenceType {
		p.AddWarning("document type was classified with low confidence")
		p.ReviewRequired = true
	}

	if in.DocType == domain.DocTypeUnknown {
		p.AddWarning("unrecognized document type; no schema registered, manual review required")
		p.ReviewRequired = true
		return p
	}

	var m map[string]any
	if err := json.Unmarshal(in.Raw, &m); err != nil {
		p.AddWarning(fmt.Sprintf("extraction output is not a JSON object: %v", err))
		p.ReviewRequired = true
		return p
	}

	// Step 1: structural validation. Offending fields are nulled out and
	// recorded as warnings; critical-field absence is caught below.
	if schema, ok := v.schemas[in.DocType]; ok {
		v.applySchema(schema, m, p)
	}

	if conf, ok := m["confidence"].(float64); ok {
		p.Confidence = conf
	}

	v.decodeProjection(m, p)

	// Critical-field policy: a missing critical field flags the payload
	// for review but the best-effort projection is still returned.
	for _, field := range criticalFields[in.DocType] {
		if isMissing(m[field]) {
			p.AddWarning(fmt.Sprintf("critical field %q is missing or invalid", field))
			p.ReviewRequired = true
			continue
		}
		p.Provenance = append(p.Provenance, domain.FieldProvenance{
			Field:  field,
			Source: in.SourceFile,
			Page:   in.Pages,
		})
	}

	// Step 3: identifier normalization, then step 2: reconciliation over
	// the normalized projection.
	v.normalizeIdentifiers(p)
	v.reconcileContract(p)
	v.reconcilePayment(p)

	return p
}

// applySchema validates m against the schema and strips top-level fields
// that failed, recording one warning per failure location.
func (v *Validator) applySchema(schema *jsonschema.Schema, m map[string]any, p *domain.ExtractedPayload) {
	err := schema.Validate(m)
	if err == nil {
		return
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		p.AddWarning(fmt.Sprintf("schema validation failed: %v", err))
		p.ReviewRequired = true
		return
	}

	for _, leaf := range leafCauses(ve) {
		loc := strings.TrimPrefix(leaf.InstanceLocation, "/")
		if loc == "" {
			continue
		}
		p.AddWarning(fmt.Sprintf("field %q failed validation: %s", loc, leaf.Message))

		// Null out exactly the offending leaf so decoding cannot pick up
		// a value the schema rejected. Siblings stay intact: one bad
		// budget must not take down the whole task list.
		if !nullLeaf(m, strings.Split(loc, "/")) {
			// The location no longer resolves (an earlier cause removed
			// an ancestor). Dropping the top-level field discards data
			// the document actually carried, so force review.
			top := strings.SplitN(loc, "/", 2)[0]
			m[top] = nil
			p.ReviewRequired = true
		}
	}
}

// nullLeaf walks the decoded JSON value along the pointer segments and
// sets the addressed leaf to nil. It reports false when the path cannot
// be resolved.
func nullLeaf(root map[string]any, segments []string) bool {
	var parent any = root
	for i, seg := range segments {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		last := i == len(segments)-1
		switch node := parent.(type) {
		case map[string]any:
			if _, ok := node[seg]; !ok {
				return false
			}
			if last {
				node[seg] = nil
				return true
			}
			parent = node[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return false
			}
			if last {
				node[idx] = nil
				return true
			}
			parent = node[idx]
		default:
			return false
		}
	}
	return false
}

// leafCauses flattens a validation error tree into its leaf causes.
func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var leaves []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		leaves = append(leaves, leafCauses(c)...)
	}
	return leaves
}

// decodeProjection re-marshals the sanitized map into the typed projection
// for the document type.
func (v *Validator) decodeProjection(m map[string]any, p *domain.ExtractedPayload) {
	b, err := json.Marshal(m)
	if err != nil {
		p.AddWarning(fmt.Sprintf("failed to re-encode sanitized payload: %v", err))
		p.ReviewRequired = true
		return
	}

	decode := func(dst any) bool {
		if err := json.Unmarshal(b, dst); err != nil {
			p.AddWarning(fmt.Sprintf("failed to decode %s projection: %v", p.DocType, err))
			p.ReviewRequired = true
			return false
		}
		return true
	}

	switch p.DocType {
	case domain.DocTypeContract:
		var c domain.ContractFields
		if decode(&c) {
			p.Contract = &c
		}
	case domain.DocTypePaymentState:
		var pay domain.PaymentFields
		if decode(&pay) {
			p.Payment = &pay
		}
	case domain.DocTypeMemo:
		var memo domain.MemoFields
		if decode(&memo) {
			p.Memo = &memo
		}
	}
}

// normalizeIdentifiers canonicalizes task numbers in contract tasks and
// payment lines. Unmapped identifiers pass through unchanged with a warning.
func (v *Validator) normalizeIdentifiers(p *domain.ExtractedPayload) {
	if p.Contract != nil {
		for i := range p.Contract.Tasks {
			t := &p.Contract.Tasks[i]
			normalized, ok := NormalizeTaskNumber(t.Number, t.Name)
			if !ok {
				p.AddWarning(fmt.Sprintf("task %q has no resolvable task number", t.Name))
				continue
			}
			t.Number = normalized
		}
	}
	if p.Payment != nil {
		for i := range p.Payment.Lines {
			l := &p.Payment.Lines[i]
			normalized, ok := NormalizeTaskNumber(l.TaskNumber, l.Description)
			if !ok {
				p.AddWarning(fmt.Sprintf("payment line %q has no resolvable task number", l.Description))
				continue
			}
			l.TaskNumber = normalized
		}
	}
}

// isMissing reports whether a decoded JSON value is absent. A numeric
// zero is a legitimate extracted value, not an absence.
func isMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}
