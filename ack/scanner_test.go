package ack

import (
	"strings"
	"testing"
	"testing/iotest"
)

func scanAll(t *testing.T, input string, maxSize int) ([]string, error) {
	t.Helper()
	sc, sp := newRecordScanner(iotest.OneByteReader(strings.NewReader(input)), maxSize)
	var out []string
	for sc.Scan() {
		rec := sc.Text()
		if sp.oversized {
			rec = "<oversized>"
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}

func TestSplitRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "newline delimited",
			input: "{\"a\":1}\n{\"b\":2}\n",
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "concatenated",
			input: `{"a":1}{"b":2}`,
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "whitespace between",
			input: " \r\n\t{\"a\":1}  \n\n {\"b\":2}",
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "brace inside string",
			input: `{"s":"}{\"}"}{"b":2}`,
			want:  []string{`{"s":"}{\"}"}`, `{"b":2}`},
		},
		{
			name:  "nested object",
			input: `{"a":{"b":{}}}` + "\n",
			want:  []string{`{"a":{"b":{}}}`},
		},
		{
			name:  "non-object line",
			input: "garbage here\r\n{\"a\":1}\n",
			want:  []string{"garbage here", `{"a":1}`},
		},
		{
			name:  "truncated object at eof",
			input: `{"a":1}{"b":`,
			want:  []string{`{"a":1}`, `{"b":`},
		},
		{
			name:  "unbalanced object then newline and object",
			input: "{\"type\":\"PERSISTED\",\n{\"b\":2}\n",
			want:  []string{`{"type":"PERSISTED",`, `{"b":2}`},
		},
		{
			name:  "newline inside string",
			input: "{\"errorCode\":\"x\r\n{\"b\":2}\n",
			want:  []string{`{"errorCode":"x`, `{"b":2}`},
		},
		{
			name:  "pretty printed object",
			input: "{\n  \"a\": {\n    \"b\": 1\n  }\n}\n{\"c\":3}",
			want:  []string{"{\n  \"a\": {\n    \"b\": 1\n  }\n}", `{"c":3}`},
		},
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "only whitespace",
			input: "\n\n  \n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scanAll(t, tt.input, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d records %q, want %d %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("record %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitRecords_TooLarge(t *testing.T) {
	input := `{"pad":"` + strings.Repeat("x", 256) + `"}` + "\n" + `{"b":2}` + "\n"
	got, err := scanAll(t, input, 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"<oversized>", `{"b":2}`}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("records = %q, want %q", got, want)
	}
}

func TestSplitRecords_TooLargeAtEOF(t *testing.T) {
	got, err := scanAll(t, strings.Repeat("x", 200), 64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "<oversized>" {
		t.Errorf("records = %q, want one oversized record", got)
	}
}

func TestObjectEnd(t *testing.T) {
	tests := []struct {
		in          string
		wantToken   int
		wantAdvance int
		wantOK      bool
	}{
		{`{}`, 2, 2, true},
		{`{"a":1} trailing`, 7, 7, true},
		{`{"a":"\\"}`, 10, 10, true},
		{`{"a":`, 0, 0, false},
		{`{"a":"}"`, 0, 0, false},
		{"{\"a\":\"x\ny\"}", 7, 8, true},
		{"{\"a\":1,\n{", 7, 8, true},
		{"{\"a\":1,\n", 0, 0, false},
		{"{\"a\":\n 1}", 9, 9, true},
	}
	for _, tt := range tests {
		token, advance, ok := objectEnd([]byte(tt.in))
		if token != tt.wantToken || advance != tt.wantAdvance || ok != tt.wantOK {
			t.Errorf("objectEnd(%q) = (%d, %d, %v), want (%d, %d, %v)",
				tt.in, token, advance, ok, tt.wantToken, tt.wantAdvance, tt.wantOK)
		}
	}
}
