package utils

import (
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
}

func TestTruncateMultibyte(t *testing.T) {
	in := "héllo wörld, こんにちは"
	got := Truncate(in, 8)
	if got != "héllo wö..." {
		t.Errorf("got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated string is not valid UTF-8: %q", got)
	}
	if Truncate("こんにちは", 5) != "こんにちは" {
		t.Error("string at exactly maxLen characters unchanged")
	}
}
