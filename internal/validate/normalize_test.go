package validate

import "testing"

func TestNormalizeTaskNumber(t *testing.T) {
	testCases := []struct {
		name   string
		number string
		item   string
		want   string
		wantOK bool
	}{
		{
			name:   "trailing zero decimal stripped",
			number: "3.0",
			want:   "3",
			wantOK: true,
		},
		{
			name:   "canonical number unchanged",
			number: "1.2",
			want:   "1.2",
			wantOK: true,
		},
		{
			name:   "double zero segments stripped",
			number: "2.0.0",
			want:   "2",
			wantOK: true,
		},
		{
			name:   "non-zero decimal kept",
			number: "1.20",
			want:   "1.20",
			wantOK: true,
		},
		{
			name:   "whitespace trimmed",
			number: " 3.0 ",
			want:   "3",
			wantOK: true,
		},
		{
			name:   "visita terreno keyword rule",
			number: "",
			item:   "Visita a terreno inicial",
			want:   "1.2",
			wantOK: true,
		},
		{
			name:   "accented keyword rule",
			number: "",
			item:   "Instalación de faena",
			want:   "1.1",
			wantOK: true,
		},
		{
			name:   "informe final rule",
			number: "",
			item:   "Entrega de informe final",
			want:   "4.1",
			wantOK: true,
		},
		{
			name:   "unmapped name passes through",
			number: "",
			item:   "Servicios varios",
			want:   "",
			wantOK: false,
		},
		{
			name:   "explicit number wins over keywords",
			number: "2.3",
			item:   "visita a terreno",
			want:   "2.3",
			wantOK: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeTaskNumber(tc.number, tc.item)
			if got != tc.want {
				t.Errorf("NormalizeTaskNumber(%q, %q) = %q, want %q", tc.number, tc.item, got, tc.want)
			}
			if ok != tc.wantOK {
				t.Errorf("ok = %v, want %v", ok, tc.wantOK)
			}
		})
	}
}
