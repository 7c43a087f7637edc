package zipedit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in   string
		want string
	}{
		{in: "docs/readme.txt", want: "docs/readme.txt"},
		{in: `docs\readme.txt`, want: "docs/readme.txt"},
		{in: "a/../../evil.txt", want: "a/_/_/evil.txt"},
		{in: "/etc/passwd", want: "etc/passwd"},
		{in: "C:/x.txt", want: "C_/x.txt"},
		{in: "dir/con.txt", want: "dir/_con.txt"},
		{in: "LPT1", want: "_LPT1"},
		{in: "what?.txt", want: "what_.txt"},
		{in: "trail. ", want: "trail"},
		{in: "bell\a.txt", want: "bell_.txt"},
		{in: "", want: "_"},
	}

	for _, tc := range testCases {
		got, err := SanitizePath(tc.in)
		if err != nil {
			t.Fatalf("SanitizePath(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("SanitizePath(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeLongSegment(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("n", 500) + ".txt"
	got, err := SanitizePath(long)
	if err != nil {
		t.Fatalf("SanitizePath: %v", err)
	}

	if len(got) != maxSanitizedSegmentLen {
		t.Fatalf("len=%d, want %d", len(got), maxSanitizedSegmentLen)
	}

	again, err := SanitizePath(long)
	if err != nil {
		t.Fatalf("SanitizePath: %v", err)
	}
	if again != got {
		t.Fatalf("SanitizePath not deterministic: %q vs %q", got, again)
	}
}

func TestPathSanitizerUnique(t *testing.T) {
	t.Parallel()

	s := newPathSanitizer()
	testCases := []struct {
		in   string
		want string
	}{
		{in: "a/file.txt", want: "a/file.txt"},
		{in: "a/FILE.txt", want: "a/FILE~2.txt"},
		{in: "A/file.txt", want: "A/file~3.txt"},
		{in: "a/file?.txt", want: "a/file_.txt"},
	}

	for _, tc := range testCases {
		got, err := s.sanitize(tc.in, false)
		if err != nil {
			t.Fatalf("sanitize(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("sanitize(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}

	dir, err := s.sanitize("a/", true)
	if err != nil {
		t.Fatalf("sanitize(folder): %v", err)
	}
	if dir != "a" {
		t.Fatalf("sanitize(folder)=%q, want %q", dir, "a")
	}
}

func TestExtractToSanitizeNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "unsafe.zip")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, data := range map[string]string{
		"a/../../evil.txt": "evil",
		"a/con.txt":        "device",
		"a/Q?.txt":         "question",
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatalf("CreateHeader(%q): %v", name, err)
		}
		if _, err := w.Write([]byte(data)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	a, err := Open(path, ModeReadOnly)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = a.Close() }()

	out := filepath.Join(dir, "out")
	if err := a.ExtractTo(context.Background(), "a", out, ExtractOptions{}); !errors.Is(err, ErrInvalidExtractPath) {
		t.Fatalf("ExtractTo without sanitize err=%v, want ErrInvalidExtractPath", err)
	}

	if err := a.ExtractTo(context.Background(), "a", out, ExtractOptions{SanitizeNames: true}); err != nil {
		t.Fatalf("ExtractTo: %v", err)
	}

	checks := map[string]string{
		filepath.Join(out, "a", "_", "_", "evil.txt"): "evil",
		filepath.Join(out, "a", "_con.txt"):           "device",
		filepath.Join(out, "a", "Q_.txt"):             "question",
	}
	for file, want := range checks {
		data, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", file, err)
		}
		if string(data) != want {
			t.Fatalf("%s=%q, want %q", file, data, want)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "evil.txt")); !os.IsNotExist(err) {
		t.Fatalf("traversal entry written outside root: %v", err)
	}
}
