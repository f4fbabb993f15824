package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("東京", 2); got != "東京" {
		t.Errorf("multibyte string that fits: got %s", got)
	}
	if got := Truncate("東京都の人口", 2); got != "東京..." {
		t.Errorf("multibyte cut: got %s", got)
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter", "Boston", 10, "Boston"},
		{"exact", "Boston", 6, "Boston"},
		{"ascii cut", "Houston, Texas", 7, "Houston"},
		{"multibyte not split", "Montréal", 6, "Montré"},
		{"multibyte fits by runes", "Montréal", 8, "Montréal"},
		{"zero keeps", "Atlanta", 0, "Atlanta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clip(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("Clip(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Error("result is not valid UTF-8")
			}
		})
	}
}

func TestClip_LongArticle(t *testing.T) {
	article := strings.Repeat("Chicago is on Lake Michigan. ", 1000)
	got := Clip(article, 10000)
	if utf8.RuneCountInString(got) != 10000 {
		t.Errorf("clipped length = %d", utf8.RuneCountInString(got))
	}
}
