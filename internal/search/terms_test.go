package search

import (
	"reflect"
	"testing"
)

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello world"},
		{"  spaced\t\nout  ", "spaced out"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeQuery(tt.in); got != tt.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractTerms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"drops stop words and short tokens", "what is the revenue for Q3", []string{"revenue"}},
		{"strips punctuation", `"kubernetes," (ingress)!`, []string{"kubernetes", "ingress"}},
		{"dedupes preserving order", "redis redis cluster redis", []string{"redis", "cluster"}},
		{"all noise yields nil", "is it the an of", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractTerms(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractTerms(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTermOverlap(t *testing.T) {
	t.Parallel()

	content := "The Kubernetes ingress controller routes traffic"
	tests := []struct {
		name  string
		terms []string
		want  float64
	}{
		{"all present", []string{"kubernetes", "ingress"}, 1},
		{"half present", []string{"kubernetes", "database"}, 0.5},
		{"none present", []string{"postgres"}, 0},
		{"no terms", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TermOverlap(content, tt.terms)
			if got != tt.want {
				t.Errorf("TermOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}
