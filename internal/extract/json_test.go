package extract

import (
	"errors"
	"testing"
)

func TestStripToJSON(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"contract_code":"CTR-1"}`,
			want:  `{"contract_code":"CTR-1"}`,
		},
		{
			name:  "json code fence",
			input: "```json\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "plain code fence",
			input: "```\n{\"a\":1}\n```",
			want:  `{"a":1}`,
		},
		{
			name:  "prose around object",
			input: "Here is the extraction you asked for:\n{\"a\": {\"b\": 2}}\nLet me know if you need anything else.",
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "braces inside strings",
			input: `result: {"note":"uses {curly} braces","n":1} done`,
			want:  `{"note":"uses {curly} braces","n":1}`,
		},
		{
			name:    "no object at all",
			input:   "I could not read this document.",
			wantErr: true,
		},
		{
			name:    "truncated object",
			input:   `{"a": 1, "b": {"c":`,
			wantErr: true,
		},
		{
			name:    "empty response",
			input:   "",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := StripToJSON(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("error should be a ParseError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}
