package ratelimit

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Window
		wantErr bool
	}{
		{
			name:  "single minute window",
			input: "2/min",
			want:  []Window{{Count: 2, Seconds: 60}},
		},
		{
			name:  "multiple windows",
			input: "2/min,20/day",
			want:  []Window{{Count: 2, Seconds: 60}, {Count: 20, Seconds: 86400}},
		},
		{
			name:  "whitespace tolerated",
			input: " 5/hour , 100/day ",
			want:  []Window{{Count: 5, Seconds: 3600}, {Count: 100, Seconds: 86400}},
		},
		{
			name:  "hr and mo abbreviations",
			input: "1/hr,1/mo",
			want:  []Window{{Count: 1, Seconds: 3600}, {Count: 1, Seconds: 2592000}},
		},
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:    "missing slash",
			input:   "5min",
			wantErr: true,
		},
		{
			name:    "unknown unit",
			input:   "5/fortnight",
			wantErr: true,
		},
		{
			name:    "non numeric count",
			input:   "x/min",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Parse(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected MustParse to panic on invalid input")
		}
	}()
	MustParse("bogus")
}
