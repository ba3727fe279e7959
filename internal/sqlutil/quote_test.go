package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", `"users"`},
		{"user_data", `"user_data"`},
		{"select", `"select"`},             // reserved word
		{"first name", `"first name"`},     // space in name
		{`user"data`, `"user""data"`},      // quote in name
		{`a"b"c`, `"a""b""c"`},             // multiple quotes
		{"", `""`},                         // empty string
		{"schema.table", `"schema.table"`}, // dots are not split here
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteQualifiedName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", `"users"`},
		{"analytics.events", `"analytics"."events"`},
		{`odd"schema.t`, `"odd""schema"."t"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteQualifiedName(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteQualifiedName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteColumn(t *testing.T) {
	if got := QuoteColumn("posts", "title"); got != `"posts"."title"` {
		t.Errorf("QuoteColumn = %q", got)
	}
	if got := QuoteColumn("", "title"); got != `"title"` {
		t.Errorf("QuoteColumn without qualifier = %q", got)
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"users":            "users",
		"analytics.events": "events",
		"a.b.c":            "c",
	}
	for input, want := range tests {
		if got := BaseName(input); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", input, got, want)
		}
	}
}
