package domain

// DocumentType identifies what kind of PDF a job is ingesting.
// The type decides which extraction prompt, schema, and upsert path apply.
type DocumentType string

const (
	// DocTypeContract is a signed mining services contract.
	DocTypeContract DocumentType = "contract"

	// DocTypePaymentState is a monthly payment statement ("estado de pago").
	DocTypePaymentState DocumentType = "payment_state"

	// DocTypeMemo is a technical memorandum attached to a contract.
	DocTypeMemo DocumentType = "memo"

	// DocTypeUnknown is the fallback for unrecognized folder conventions.
	DocTypeUnknown DocumentType = "unknown"
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case DocTypeContract, DocTypePaymentState, DocTypeMemo, DocTypeUnknown:
		return true
	}
	return false
}
