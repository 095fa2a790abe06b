package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello", 5) != "hello" {
		t.Error("exact length unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("検索エンジン", 2); got != "検索..." {
		t.Errorf("multi-byte: got %q", got)
	}
}

func TestOneLine(t *testing.T) {
	if got := OneLine("  a\n\tb  c \n"); got != "a b c" {
		t.Errorf("got %q", got)
	}
}
