package upload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newSpool(t *testing.T, max int64) *Spool {
	t.Helper()
	s, err := NewSpool(filepath.Join(t.TempDir(), "uploads"), max)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSpool_SaveKeepsExtension(t *testing.T) {
	s := newSpool(t, 0)
	path, err := s.Save("Quarterly Report.DOCX", strings.NewReader("data"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(path) != s.Dir() {
		t.Errorf("saved outside spool: %s", path)
	}
	if filepath.Ext(path) != ".docx" {
		t.Errorf("extension = %q, want .docx", filepath.Ext(path))
	}
	if !strings.HasSuffix(path, "-Quarterly_Report.docx") {
		t.Errorf("unexpected name: %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "data" {
		t.Errorf("content = %q", data)
	}
}

func TestSpool_SaveSameNameTwice(t *testing.T) {
	s := newSpool(t, 0)
	a, err := s.Save("a.csv", strings.NewReader("1"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Save("a.csv", strings.NewReader("2"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two uploads with the same name must not collide")
	}
}

func TestSpool_SaveRejectsTraversal(t *testing.T) {
	s := newSpool(t, 0)
	for _, name := range []string{"", "  ", "../etc/passwd", `..\x.csv`, "dir/a.csv", "..", "."} {
		if _, err := s.Save(name, strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestSpool_SaveAllowsDotsInName(t *testing.T) {
	s := newSpool(t, 0)
	path, err := s.Save("Q3..final.csv", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(path, "-Q3..final.csv") {
		t.Errorf("unexpected name: %s", filepath.Base(path))
	}
}

func TestSpool_SaveTooLarge(t *testing.T) {
	s := newSpool(t, 4)
	if _, err := s.Save("a.csv", strings.NewReader("12345")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("partial upload left behind: %v", entries)
	}
	if _, err := s.Save("a.csv", strings.NewReader("1234")); err != nil {
		t.Errorf("upload at the limit should succeed: %v", err)
	}
}

func TestSpool_RemoveAndUsage(t *testing.T) {
	s := newSpool(t, 0)
	path, err := s.Save("a.csv", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}
	n, err := s.UsageBytes()
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("UsageBytes = %d, want 5", n)
	}
	if err := s.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(path); err != nil {
		t.Errorf("removing twice should be a no-op: %v", err)
	}
	n, _ = s.UsageBytes()
	if n != 0 {
		t.Errorf("UsageBytes after remove = %d", n)
	}
}

func TestSpool_RemoveOutside(t *testing.T) {
	s := newSpool(t, 0)
	outside := filepath.Join(t.TempDir(), "keep.csv")
	if err := os.WriteFile(outside, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(outside); !errors.Is(err, ErrInvalidName) {
		t.Errorf("err = %v, want ErrInvalidName", err)
	}
	if err := s.Remove(s.Dir()); !errors.Is(err, ErrInvalidName) {
		t.Errorf("removing the spool dir: err = %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Error("file outside the spool was removed")
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	f1 := filepath.Join(dir, "a")
	if err := os.WriteFile(f1, []byte("abc"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b"), []byte("de"), 0600); err != nil {
		t.Fatal(err)
	}
	n, err := DiskUsageBytes(dir, "", filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("DiskUsageBytes(dir) = %d, want 5", n)
	}
	n, err = DiskUsageBytes(f1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("DiskUsageBytes(file) = %d, want 3", n)
	}
}
