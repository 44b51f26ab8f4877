// Package prompts holds the extraction prompt templates sent to the model
// service, one pair per document type. The templates pin the output to a
// bare JSON object so the defensive parser rarely has work to do.
package prompts

import "github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"

// ExtractionSystemPrompt is shared by all document types.
const ExtractionSystemPrompt = `You are a data-extraction assistant for mining services contracts in Chile.
Documents are in Spanish. You receive the plain text of one PDF and must
answer with a single JSON object and nothing else: no markdown fences, no
explanations, no surrounding prose. Use null for values you cannot find.
Never invent contract codes, task numbers, or amounts.`

// ContractUserPrompt asks for the contract projection.
const ContractUserPrompt = `Extract the following fields from this contract text as JSON:
{
  "contract_code": string,        // e.g. "CTR-2024-017"
  "contract_name": string,
  "contractor": string,           // company performing the work
  "principal": string,            // company paying ("mandante")
  "start_date": "YYYY-MM-DD" | null,
  "end_date": "YYYY-MM-DD" | null,
  "total_budget": number,         // total contract amount
  "currency": string | null,      // "CLP", "UF", "USD"
  "tasks": [{"task_number": string, "task_name": string, "budget": number}],
  "risks": [{"description": string, "severity": "low"|"medium"|"high"}],
  "obligations": [{"description": string, "due_date": "YYYY-MM-DD" | null}],
  "confidence": number            // 0..1, your own confidence
}

Contract text:
`

// PaymentUserPrompt asks for the payment-statement projection.
const PaymentUserPrompt = `Extract the following fields from this payment statement ("estado de pago") as JSON:
{
  "contract_code": string,
  "period_number": number,        // sequential statement number
  "period_start": "YYYY-MM-DD" | null,
  "period_end": "YYYY-MM-DD" | null,
  "total_amount": number,         // total approved for the period
  "lines": [{"task_number": string, "description": string, "amount": number}],
  "confidence": number
}

Statement text:
`

// MemoUserPrompt asks for the technical memorandum projection.
const MemoUserPrompt = `Extract the following fields from this technical memorandum as JSON:
{
  "contract_code": string | null,
  "title": string,
  "date": "YYYY-MM-DD" | null,
  "summary": string,              // 2-3 sentences, in Spanish
  "topics": [string],
  "confidence": number
}

Memorandum text:
`

// UserPromptFor returns the user prompt template for a document type, or
// empty when the type has no model extraction step.
func UserPromptFor(t domain.DocumentType) string {
	switch t {
	case domain.DocTypeContract:
		return ContractUserPrompt
	case domain.DocTypePaymentState:
		return PaymentUserPrompt
	case domain.DocTypeMemo:
		return MemoUserPrompt
	default:
		return ""
	}
}
