package classify

import (
	"testing"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name          string
		path          string
		wantType      domain.DocumentType
		wantProject   string
		wantCode      string
		lowConfidence bool
	}{
		{
			name:        "contract folder",
			path:        "los-andes/CTR-2024-017/contratos/contrato_firmado.pdf",
			wantType:    domain.DocTypeContract,
			wantProject: "los-andes",
			wantCode:    "CTR-2024-017",
		},
		{
			name:        "payment state folder",
			path:        "los-andes/CTR-2024-017/estados-pago/EP_03.pdf",
			wantType:    domain.DocTypePaymentState,
			wantProject: "los-andes",
			wantCode:    "CTR-2024-017",
		},
		{
			name:        "memo folder uppercase",
			path:        "tarapaca/CTR-2023-004/MEMOS/memo_tecnico.pdf",
			wantType:    domain.DocTypeMemo,
			wantProject: "tarapaca",
			wantCode:    "CTR-2023-004",
		},
		{
			name:          "unrecognized folder falls back",
			path:          "los-andes/CTR-2024-017/varios/foto.pdf",
			wantType:      domain.DocTypeUnknown,
			wantProject:   "los-andes",
			wantCode:      "CTR-2024-017",
			lowConfidence: true,
		},
		{
			name:          "too few segments",
			path:          "orphan.pdf",
			wantType:      domain.DocTypeUnknown,
			wantProject:   "orphan.pdf",
			lowConfidence: true,
		},
		{
			name:        "leading slash tolerated",
			path:        "/los-andes/CTR-2024-017/contratos/c.pdf",
			wantType:    domain.DocTypeContract,
			wantProject: "los-andes",
			wantCode:    "CTR-2024-017",
		},
		{
			name:        "nested subfolder uses last folder segment",
			path:        "los-andes/CTR-2024-017/2024/estados_pago/EP_01.pdf",
			wantType:    domain.DocTypePaymentState,
			wantProject: "los-andes",
			wantCode:    "CTR-2024-017",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.path)
			if got.DocType != tc.wantType {
				t.Errorf("DocType = %q, want %q", got.DocType, tc.wantType)
			}
			if got.Project != tc.wantProject {
				t.Errorf("Project = %q, want %q", got.Project, tc.wantProject)
			}
			if got.ContractCode != tc.wantCode {
				t.Errorf("ContractCode = %q, want %q", got.ContractCode, tc.wantCode)
			}
			if got.LowConfidence != tc.lowConfidence {
				t.Errorf("LowConfidence = %v, want %v", got.LowConfidence, tc.lowConfidence)
			}
		})
	}
}

func TestClassifyNeverEmptyFilename(t *testing.T) {
	got := Classify("los-andes/CTR-1/contratos/archivo.pdf")
	if got.Filename != "archivo.pdf" {
		t.Errorf("Filename = %q, want %q", got.Filename, "archivo.pdf")
	}
}
