package queue

import "testing"

func TestListKey(t *testing.T) {
	got := listKey(123456)
	want := "mt5:cmds:123456"
	if got != want {
		t.Fatalf("listKey() = %q, want %q", got, want)
	}
}

func TestDoneChannel(t *testing.T) {
	got := doneChannel("abc-123")
	want := "mt5:cmddone:abc-123"
	if got != want {
		t.Fatalf("doneChannel() = %q, want %q", got, want)
	}
}
