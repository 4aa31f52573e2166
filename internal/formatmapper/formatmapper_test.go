package formatmapper

import "testing"

func TestMap_Defaults(t *testing.T) {
	m := New()

	tests := []struct {
		raw      string
		expected string
	}{
		{"Book", "book"},
		{"Hardcover", "book"},
		{"E-Book", "ebook"},
		{"Audiobook", "audiobook"},
		{"Journal", "serial"},
		{"unmapped-tag", "unmapped-tag"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := m.Map("any-source", tt.raw); got != tt.expected {
				t.Errorf("Map(%q) = %q, want %q", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestMap_Override(t *testing.T) {
	m := New().WithOverride("hathi", "txt", "book")

	if got := m.Map("hathi", "txt"); got != "book" {
		t.Errorf("Map(hathi, txt) = %q, want book", got)
	}

	// Same raw format, different source: falls through to the default table.
	if got := m.Map("other-source", "txt"); got != "txt" {
		t.Errorf("Map(other-source, txt) = %q, want txt", got)
	}
}

func TestMap_OverrideDoesNotShadowDefaultsForOtherFormats(t *testing.T) {
	m := New().WithOverride("hathi", "txt", "book")

	if got := m.Map("hathi", "ebook"); got != "ebook" {
		t.Errorf("Map(hathi, ebook) = %q, want ebook", got)
	}
}
