package discord

import (
	"testing"
	"unicode/utf8"
)

func TestTruncateKeepsRunesWhole(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hola", 10, "hola"},
		{"hola", 3, "hol"},
		// la "í" (2 bytes) arranca en el byte 4
		{"perdí mi set", 5, "perd"},
		// la espada ocupa 3 bytes, no entra entera
		{"⚔️ drama", 2, ""},
		{"año nuevo", 2, "a"},
	}
	for _, tc := range cases {
		got := truncate(tc.in, tc.max)
		if got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) devolvió UTF-8 inválido: %q", tc.in, tc.max, got)
		}
	}
}

func TestParseIDsMixedMentionsAndRaw(t *testing.T) {
	got := parseIDs("<@123> 456 <@!789> basura")
	want := []int64{123, 456, 789}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}
