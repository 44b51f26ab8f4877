// Package classify derives a document type from the storage-path folder
// convention. It is a pure function with no I/O; malformed paths fall back
// to the unknown type instead of failing.
package classify

import (
	"strings"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
)

// Result is the outcome of classifying one storage path.
type Result struct {
	DocType      domain.DocumentType
	Project      string
	ContractCode string
	Filename     string

	// LowConfidence is set when the type folder was unrecognized or the
	// path did not follow the <project>/<code>/<folder>/<file> convention.
	LowConfidence bool
}

// typeFolders maps known folder names (lowercased) to document types.
// Both the Spanish folder names used in the field and their common
// shorthand variants are accepted.
var typeFolders = map[string]domain.DocumentType{
	"contrato":       domain.DocTypeContract,
	"contratos":      domain.DocTypeContract,
	"contract":       domain.DocTypeContract,
	"contracts":      domain.DocTypeContract,
	"estado-de-pago": domain.DocTypePaymentState,
	"estados-pago":   domain.DocTypePaymentState,
	"estados_pago":   domain.DocTypePaymentState,
	"pagos":          domain.DocTypePaymentState,
	"payment":        domain.DocTypePaymentState,
	"payments":       domain.DocTypePaymentState,
	"memo":           domain.DocTypeMemo,
	"memos":          domain.DocTypeMemo,
	"memorandum":     domain.DocTypeMemo,
	"memorandos":     domain.DocTypeMemo,
}

// Classify parses a storage path following the
// <project>/<contract-code>/<type-folder>/<filename> convention.
// Unrecognized folders and malformed paths return DocTypeUnknown with
// LowConfidence set; classification never fails.
func Classify(storagePath string) Result {
	parts := strings.Split(strings.Trim(storagePath, "/"), "/")

	res := Result{
		DocType:       domain.DocTypeUnknown,
		LowConfidence: true,
	}

	if len(parts) > 0 {
		res.Filename = parts[len(parts)-1]
	}
	if len(parts) < 4 {
		// Not enough segments to carry project/code/folder.
		if len(parts) >= 1 {
			res.Project = parts[0]
		}
		if len(parts) >= 3 {
			res.ContractCode = parts[1]
		}
		return res
	}

	res.Project = parts[0]
	res.ContractCode = parts[1]

	folder := strings.ToLower(parts[len(parts)-2])
	if t, ok := typeFolders[folder]; ok {
		res.DocType = t
		res.LowConfidence = false
	}
	return res
}
