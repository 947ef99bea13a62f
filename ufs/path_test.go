package ufs

import (
	"path/filepath"
	"testing"
)

func testBackend(t *testing.T) *Backend {
	t.Helper()
	root := t.TempDir()
	b, err := New(Config{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestJoinWithinRoot(t *testing.T) {
	b := testBackend(t)

	got, err := b.join(b.cfg.Root, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(b.cfg.Root, "a", "b")
	if got != want {
		t.Errorf("join = %q, want %q", got, want)
	}
}

func TestJoinRejectsEscape(t *testing.T) {
	b := testBackend(t)

	if _, err := b.join(b.cfg.Root, ".."); err != ErrPermission {
		t.Errorf("join(root, \"..\") = %v, want ErrPermission", err)
	}
}

func TestJoinRejectsSeparatorInComponent(t *testing.T) {
	b := testBackend(t)

	if _, err := b.join(b.cfg.Root, "a/b"); err != ErrInvalidName {
		t.Errorf("join with embedded separator = %v, want ErrInvalidName", err)
	}
}

func TestJoinDotDotWithinSubtreeReturnsToParent(t *testing.T) {
	b := testBackend(t)

	sub, err := b.join(b.cfg.Root, "a")
	if err != nil {
		t.Fatal(err)
	}
	back, err := b.join(sub, "..")
	if err != nil {
		t.Fatal(err)
	}
	if back != b.cfg.Root {
		t.Errorf("join(a, \"..\") = %q, want root %q", back, b.cfg.Root)
	}
}
