package url

import "testing"

func TestTransform(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "github blob to raw",
			input: "https://github.com/golang/go/blob/master/src/fmt/print.go",
			want:  "https://raw.githubusercontent.com/golang/go/master/src/fmt/print.go",
		},
		{
			name:  "www github blob to raw",
			input: "https://www.github.com/golang/go/blob/master/doc/README.md",
			want:  "https://raw.githubusercontent.com/golang/go/master/doc/README.md",
		},
		{
			name:  "fragment and plain query dropped",
			input: "https://github.com/o/r/blob/main/README.md?plain=1#usage",
			want:  "https://raw.githubusercontent.com/o/r/main/README.md",
		},
		{
			name:  "blob in file path is not a viewer url",
			input: "https://github.com/o/r/tree/main/blob/x.md",
			want:  "https://github.com/o/r/tree/main/blob/x.md",
		},
		{
			name:  "github raw endpoint unchanged",
			input: "https://github.com/o/r/raw/main/README.md",
			want:  "https://github.com/o/r/raw/main/README.md",
		},
		{
			name:  "github repo root unchanged",
			input: "https://github.com/golang/go",
			want:  "https://github.com/golang/go",
		},
		{
			name:  "non-github unchanged",
			input: "https://example.com/path/to/file",
			want:  "https://example.com/path/to/file",
		},
		{
			name:  "raw github unchanged",
			input: "https://raw.githubusercontent.com/golang/go/master/README.md",
			want:  "https://raw.githubusercontent.com/golang/go/master/README.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transform(tt.input)
			if got != tt.want {
				t.Errorf("Transform(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
