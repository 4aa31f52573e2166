package normalize

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"The Art of Computer Programming", "the art of computer programming"},
		{"  Café   au Lait  ", "cafe au lait"},
		{"Knuth, D.", "knuth d"},
		{"", ""},
		{"Über den Wolken", "uber den wolken"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTitleKey(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"The Art of Computer Programming", "art of computer programming"},
		{"A Tale of Two Cities", "tale of two cities"},
		{"An American Tragedy", "american tragedy"},
		{"Moby Dick", "moby dick"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := TitleKey(tt.input); got != tt.expected {
				t.Errorf("TitleKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAuthorMatch(t *testing.T) {
	tests := []struct {
		a, b     string
		expected bool
	}{
		{"Knuth D.", "Knuth, Donald", true},
		{"Donald Knuth", "Knuth, D.", true},
		{"Knuth, Donald", "Knuth, Donald", true},
		{"Smith, John", "Smith, Jane", false},
		{"", "", true},
		{"Smith, John", "", false},
		{"Le Guin, Ursula K.", "Le Guin, U.", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := AuthorMatch(tt.a, tt.b); got != tt.expected {
				t.Errorf("AuthorMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"The Art of Computer Programming", "The Art of Computer Programing", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := Levenshtein(tt.a, tt.b); got != tt.expected {
				t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

// TestLevenshtein_TitleRatioBoundary exercises the exact boundary the
// match predicate's title gate checks: ratio 10.00 must not match, 9.99
// must. At 10 characters, one edit gives 100*1/10 = 10, exactly the
// boundary; this test verifies the arithmetic building blocks rather than
// the gate itself, which lives in the dedup package.
func TestLevenshtein_TitleRatioBoundary(t *testing.T) {
	a := "0123456789"
	b := "012345678X"
	d := Levenshtein(a, b)
	if d != 1 {
		t.Fatalf("Levenshtein(%q, %q) = %d, want 1", a, b, d)
	}
	ratio := 100 * d / len([]rune(a))
	if ratio != 10 {
		t.Fatalf("ratio = %d, want 10", ratio)
	}
}

func TestIDSortKey(t *testing.T) {
	a := IDSortKey("oclc9")
	b := IDSortKey("oclc10")
	if !(a < b) {
		t.Fatalf("IDSortKey(%q)=%q should sort before IDSortKey(%q)=%q", "oclc9", a, "oclc10", b)
	}
}

func TestTruncate255(t *testing.T) {
	short := "short title"
	if got := Truncate255(short); got != short {
		t.Errorf("Truncate255(%q) = %q, want unchanged", short, got)
	}

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'a'
	}
	truncated := Truncate255(string(long))
	if len([]rune(truncated)) != 255 {
		t.Errorf("Truncate255 length = %d, want 255", len([]rune(truncated)))
	}
}
