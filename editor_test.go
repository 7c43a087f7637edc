package zipedit

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

// testTime is an even-second UTC stamp representable in DOS format.
var testTime = time.Date(2024, time.March, 14, 15, 9, 26, 0, time.UTC)

// testFile describes one entry for createTestArchive; names ending in "/" are folders.
type testFile struct {
	name string
	data []byte
}

func TestDeleteSingleEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	createScenarioArchive(t, path)
	before := fileSize(t, path)

	a, err := Open(path, ModeUpdate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := a.Delete("dir/y.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	after := fileSize(t, path)
	if after >= before {
		t.Fatalf("size after delete=%d, want < %d", after, before)
	}

	// stored payload: local header + name + data, plus central record + name
	wantReclaimed := int64(30+len("dir/y.txt")+len("BB")) + int64(46+len("dir/y.txt"))
	if before-after != wantReclaimed {
		t.Fatalf("reclaimed=%d, want %d", before-after, wantReclaimed)
	}

	names := listNames(t, path)
	slices.Sort(names)
	if want := []string{"dir/z.txt", "x.txt"}; !slices.Equal(names, want) {
		t.Fatalf("List=%v, want %v", names, want)
	}

	assertEntryData(t, path, "x.txt", "A")
	assertEntryData(t, path, "dir/z.txt", "CCC")
	assertForeignReadable(t, path)
}

func TestDeleteFolderCascades(t *testing.T) {
	t.Parallel()

	for _, sel := range []string{"dir", "dir/", `.\dir`} {
		sel := sel
		t.Run(sel, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "archive.zip")
			createTestArchive(t, path, ModeCreate, Options{},
				testFile{name: "x.txt", data: []byte("A")},
				testFile{name: "dir/"},
				testFile{name: "dir/y.txt", data: []byte("BB")},
				testFile{name: "dir/z.txt", data: []byte("CCC")},
				testFile{name: "dirx.txt", data: []byte("DDDD")},
			)

			a, err := Open(path, ModeUpdate)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}

			if err := a.Delete(sel); err != nil {
				t.Fatalf("Delete(%q): %v", sel, err)
			}

			for _, name := range []string{"dir/", "dir/y.txt", "dir/z.txt"} {
				has, err := a.Has(name)
				if err != nil {
					t.Fatalf("Has(%q): %v", name, err)
				}
				if has {
					t.Fatalf("Has(%q)=true after deleting %q", name, sel)
				}
			}

			if err := a.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			names := listNames(t, path)
			if want := []string{"x.txt", "dirx.txt"}; !slices.Equal(names, want) {
				t.Fatalf("List=%v, want %v", names, want)
			}

			assertEntryData(t, path, "x.txt", "A")
			assertEntryData(t, path, "dirx.txt", "DDDD")
		})
	}
}

func TestDeleteNoMatchIsNoop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	createScenarioArchive(t, path)
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	a, err := Open(path, ModeUpdate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := a.Delete("missing.txt", "di", "dir/y"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	count, err := a.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Fatalf("Count=%d, want 3", count)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatal("archive bytes changed by no-op delete")
	}
}

func TestDeleteAllEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	createScenarioArchive(t, path)

	a, err := Open(path, ModeUpdate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := a.Delete("x.txt", "dir"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// only the end of central directory record remains
	if size := fileSize(t, path); size != 22 {
		t.Fatalf("size=%d, want 22", size)
	}

	if names := listNames(t, path); len(names) != 0 {
		t.Fatalf("List=%v, want empty", names)
	}

	assertForeignReadable(t, path)
}

func TestDeleteFirstOfMany(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	files := make([]testFile, 0, 32)
	for i := range 32 {
		files = append(files, testFile{
			name: fmt.Sprintf("data/%c_%02d.bin", 'a'+i%26, i),
			data: patternPayload(i, 3000+i*97),
		})
	}
	createTestArchive(t, path, ModeCreate, Options{Method: MethodStore}, files...)

	a, err := OpenWithOptions(path, ModeUpdate, Options{MoveBufferSize: 7})
	if err != nil {
		t.Fatalf("OpenWithOptions: %v", err)
	}

	toDelete := []string{files[0].name, files[5].name, files[6].name, files[31].name}
	if err := a.Delete(toDelete...); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path, ModeReadOnly)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	count, err := r.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != len(files)-len(toDelete) {
		t.Fatalf("Count=%d, want %d", count, len(files)-len(toDelete))
	}

	for _, f := range files {
		has, err := r.Has(f.name)
		if err != nil {
			t.Fatalf("Has(%q): %v", f.name, err)
		}

		if slices.Contains(toDelete, f.name) {
			if has {
				t.Fatalf("Has(%q)=true after delete", f.name)
			}
			continue
		}

		got, err := r.ReadEntry(f.name)
		if err != nil {
			t.Fatalf("ReadEntry(%q): %v", f.name, err)
		}
		if !bytes.Equal(got, f.data) {
			t.Fatalf("ReadEntry(%q) payload mismatch", f.name)
		}
	}
}

func TestDeleteZip64(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	createTestArchive(t, path, ModeCreate64, Options{},
		testFile{name: "a.txt", data: bytes.Repeat([]byte("alpha "), 500)},
		testFile{name: "b/", data: nil},
		testFile{name: "b/c.txt", data: bytes.Repeat([]byte("charlie "), 500)},
		testFile{name: "d.txt", data: []byte("delta")},
	)

	entries, err := ListEntries(path)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	footprint := entryFootprint(t, entries, "a.txt")
	before := fileSize(t, path)

	a, err := Open(path, ModeUpdate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	zip64, err := a.IsZip64()
	if err != nil {
		t.Fatalf("IsZip64: %v", err)
	}
	if !zip64 {
		t.Fatal("IsZip64=false, want true")
	}

	if err := a.Delete("a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if got := before - fileSize(t, path); got != footprint {
		t.Fatalf("reclaimed=%d, want %d", got, footprint)
	}

	assertEntryData(t, path, "b/c.txt", string(bytes.Repeat([]byte("charlie "), 500)))
	assertEntryData(t, path, "d.txt", "delta")
	assertForeignReadable(t, path)
}

func TestDeleteAfterInsertInSameSession(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	createScenarioArchive(t, path)

	a, err := Open(path, ModeUpdate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := a.Insert("new/one.txt", bytes.NewReader([]byte("one")), testTime); err != nil {
		t.Fatalf("Insert one: %v", err)
	}
	if err := a.Insert("new/two.txt", bytes.NewReader([]byte("two-two")), testTime); err != nil {
		t.Fatalf("Insert two: %v", err)
	}

	if err := a.Delete("x.txt", "new/one.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err := a.ReadEntry("new/two.txt")
	if err != nil {
		t.Fatalf("ReadEntry before close: %v", err)
	}
	if string(got) != "two-two" {
		t.Fatalf("ReadEntry before close=%q, want %q", got, "two-two")
	}

	if err := a.Insert("new/three.txt", bytes.NewReader([]byte("three")), testTime); err != nil {
		t.Fatalf("Insert three: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	names := listNames(t, path)
	if want := []string{"dir/y.txt", "dir/z.txt", "new/two.txt", "new/three.txt"}; !slices.Equal(names, want) {
		t.Fatalf("List=%v, want %v", names, want)
	}

	assertEntryData(t, path, "dir/y.txt", "BB")
	assertEntryData(t, path, "new/two.txt", "two-two")
	assertEntryData(t, path, "new/three.txt", "three")
	assertForeignReadable(t, path)
}

func TestDeleteValidation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	createScenarioArchive(t, path)

	a, err := Open(path, ModeUpdate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = a.Close() }()

	testCases := []struct {
		name  string
		names []string
	}{
		{name: "empty selection", names: nil},
		{name: "empty name", names: []string{""}},
		{name: "dot", names: []string{"."}},
		{name: "root", names: []string{"/"}},
		{name: "mixed", names: []string{"x.txt", "  "}},
	}

	for _, tc := range testCases {
		if err := a.Delete(tc.names...); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("%s: Delete err=%v, want ErrInvalidParameter", tc.name, err)
		}
	}

	count, err := a.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Fatalf("Count=%d, want 3", count)
	}
}

func TestDeleteFailureBreaksSession(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	createScenarioArchive(t, path)

	a, err := Open(path, ModeUpdate)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ro, err := os.Open(path)
	if err != nil {
		t.Fatalf("os.Open: %v", err)
	}
	defer func() { _ = ro.Close() }()

	// moves read fine but every write fails
	a.stream = newStreamIO(ro)

	err = a.Delete("x.txt")
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Delete err=%v, want ErrIO", err)
	}

	if _, err := a.Count(); !errors.Is(err, ErrBrokenArchive) {
		t.Fatalf("Count err=%v, want ErrBrokenArchive", err)
	}

	if err := a.Insert("late.txt", bytes.NewReader([]byte("late")), testTime); !errors.Is(err, ErrBrokenArchive) {
		t.Fatalf("Insert err=%v, want ErrBrokenArchive", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if a.Mode() != ModeNone {
		t.Fatalf("Mode after Close=%s, want none", a.Mode())
	}
}

func TestDeleteRequiresUpdateMode(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive.zip")
	createScenarioArchive(t, path)

	r, err := Open(path, ModeReadOnly)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	if err := r.Delete("x.txt"); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("Delete err=%v, want ErrInvalidOperation", err)
	}

	c, err := Open(filepath.Join(t.TempDir(), "new.zip"), ModeCreate)
	if err != nil {
		t.Fatalf("Open create: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Delete("x.txt"); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("Delete in create err=%v, want ErrInvalidOperation", err)
	}
}

// createScenarioArchive writes x.txt, dir/y.txt and dir/z.txt.
func createScenarioArchive(tb testing.TB, path string) {
	tb.Helper()

	createTestArchive(tb, path, ModeCreate, Options{},
		testFile{name: "x.txt", data: []byte("A")},
		testFile{name: "dir/y.txt", data: []byte("BB")},
		testFile{name: "dir/z.txt", data: []byte("CCC")},
	)
}

// createTestArchive writes files in order into a new archive at path.
func createTestArchive(tb testing.TB, path string, mode OpenMode, opts Options, files ...testFile) {
	tb.Helper()

	a, err := OpenWithOptions(path, mode, opts)
	if err != nil {
		tb.Fatalf("OpenWithOptions: %v", err)
	}

	for _, f := range files {
		if isFolderName(f.name) {
			err = a.InsertFolder(f.name)
		} else {
			err = a.Insert(f.name, bytes.NewReader(f.data), testTime)
		}
		if err != nil {
			_ = a.Close()
			tb.Fatalf("insert %q: %v", f.name, err)
		}
	}

	if err := a.Close(); err != nil {
		tb.Fatalf("Close: %v", err)
	}
}

// listNames returns entry names of archive at path in directory order.
func listNames(tb testing.TB, path string) []string {
	tb.Helper()

	a, err := Open(path, ModeReadOnly)
	if err != nil {
		tb.Fatalf("Open: %v", err)
	}
	defer func() { _ = a.Close() }()

	names, err := a.List()
	if err != nil {
		tb.Fatalf("List: %v", err)
	}

	return names
}

// assertEntryData checks decoded payload of one entry.
func assertEntryData(tb testing.TB, path string, name string, want string) {
	tb.Helper()

	a, err := Open(path, ModeReadOnly)
	if err != nil {
		tb.Fatalf("Open: %v", err)
	}
	defer func() { _ = a.Close() }()

	var buf bytes.Buffer
	mtime, err := a.Extract(name, &buf)
	if err != nil {
		tb.Fatalf("Extract(%q): %v", name, err)
	}

	if buf.String() != want {
		tb.Fatalf("Extract(%q)=%q, want %q", name, buf.String(), want)
	}

	if !mtime.Equal(testTime) {
		tb.Fatalf("Extract(%q) mtime=%v, want %v", name, mtime, testTime)
	}
}

// assertForeignReadable reads every entry with an independent ZIP reader.
func assertForeignReadable(tb testing.TB, path string) {
	tb.Helper()

	zr, err := zip.OpenReader(path)
	if err != nil {
		tb.Fatalf("zip.OpenReader: %v", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			tb.Fatalf("open %q: %v", f.Name, err)
		}

		if _, err := io.Copy(io.Discard, rc); err != nil {
			_ = rc.Close()
			tb.Fatalf("read %q: %v", f.Name, err)
		}
		_ = rc.Close()
	}
}

// entryFootprint returns local plus directory bytes of a non-last entry.
func entryFootprint(tb testing.TB, entries []EntryInfo, name string) int64 {
	tb.Helper()

	for i := range entries {
		if entries[i].Name != name {
			continue
		}
		if i+1 >= len(entries) {
			tb.Fatalf("entry %q is last", name)
		}

		local := entries[i+1].LocalHeaderOffset - entries[i].LocalHeaderOffset
		dir := entries[i+1].DirectoryOffset - entries[i].DirectoryOffset
		return int64(local + dir) //nolint:gosec // test sizes are small
	}

	tb.Fatalf("entry %q not found", name)
	return 0
}

// fileSize returns size of file at path.
func fileSize(tb testing.TB, path string) int64 {
	tb.Helper()

	fi, err := os.Stat(path)
	if err != nil {
		tb.Fatalf("Stat: %v", err)
	}

	return fi.Size()
}

// patternPayload returns deterministic, poorly compressible bytes.
func patternPayload(seed int, size int) []byte {
	out := make([]byte, size)
	x := uint32(seed)*2654435761 + 1
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x)
	}

	return out
}

// externalLayout describes how writeExternalArchive lays out a foreign archive.
type externalLayout struct {
	// stub is written before the first local header.
	stub []byte
	// comment is stored in the end of central directory record.
	comment string
	// deflate writes entries through zip.Writer.Create with data descriptors.
	deflate bool
}

// writeExternalArchive writes files with an independent ZIP writer.
func writeExternalArchive(tb testing.TB, path string, layout externalLayout, files ...testFile) {
	tb.Helper()

	f, err := os.Create(path)
	if err != nil {
		tb.Fatalf("Create: %v", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(layout.stub); err != nil {
		tb.Fatalf("write stub: %v", err)
	}

	zw := zip.NewWriter(f)
	zw.SetOffset(int64(len(layout.stub)))
	if layout.comment != "" {
		if err := zw.SetComment(layout.comment); err != nil {
			tb.Fatalf("SetComment: %v", err)
		}
	}

	for _, file := range files {
		var w io.Writer
		if layout.deflate {
			w, err = zw.Create(file.name)
		} else {
			w, err = zw.CreateHeader(&zip.FileHeader{
				Name:     file.name,
				Method:   zip.Store,
				Modified: testTime,
			})
		}
		if err != nil {
			tb.Fatalf("create %q: %v", file.name, err)
		}

		if isFolderName(file.name) {
			continue
		}

		if _, err := w.Write(file.data); err != nil {
			tb.Fatalf("write %q: %v", file.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		tb.Fatalf("zip.Writer.Close: %v", err)
	}
}

func TestDeleteFromExternalWriterArchive(t *testing.T) {
	t.Parallel()

	stub := append([]byte("#!/bin/sh\nexec unzip -l \"$0\"\n"), patternPayload(7, 91)...)
	layouts := []struct {
		name   string
		layout externalLayout
	}{
		{name: "descriptors", layout: externalLayout{deflate: true}},
		{name: "stub", layout: externalLayout{stub: stub}},
		{name: "stub_descriptors", layout: externalLayout{stub: stub, deflate: true}},
		{name: "comment", layout: externalLayout{comment: "built by an external tool"}},
	}

	files := []testFile{
		{name: "a.txt", data: bytes.Repeat([]byte("alpha "), 300)},
		{name: "dir/"},
		{name: "dir/b.bin", data: patternPayload(1, 4096)},
		{name: "dir/c.txt", data: bytes.Repeat([]byte("gamma\n"), 150)},
		{name: "z.txt", data: []byte("tail entry")},
	}

	targets := []struct {
		name      string
		selection string
		removed   []string
	}{
		{name: "first", selection: "a.txt", removed: []string{"a.txt"}},
		{name: "middle", selection: "dir/b.bin", removed: []string{"dir/b.bin"}},
		{name: "last", selection: "z.txt", removed: []string{"z.txt"}},
		{name: "folder", selection: "dir", removed: []string{"dir/", "dir/b.bin", "dir/c.txt"}},
	}

	for _, lc := range layouts {
		for _, tc := range targets {
			t.Run(lc.name+"/"+tc.name, func(t *testing.T) {
				t.Parallel()

				path := filepath.Join(t.TempDir(), "external.zip")
				writeExternalArchive(t, path, lc.layout, files...)
				before := fileSize(t, path)

				a, err := Open(path, ModeUpdate)
				if err != nil {
					t.Fatalf("Open: %v", err)
				}
				if err := a.Delete(tc.selection); err != nil {
					_ = a.Close()
					t.Fatalf("Delete(%q): %v", tc.selection, err)
				}
				if err := a.Close(); err != nil {
					t.Fatalf("Close: %v", err)
				}

				if after := fileSize(t, path); after >= before {
					t.Fatalf("size=%d, want below %d", after, before)
				}

				var wantNames []string
				for _, f := range files {
					if !slices.Contains(tc.removed, f.name) {
						wantNames = append(wantNames, f.name)
					}
				}
				if got := listNames(t, path); !slices.Equal(got, wantNames) {
					t.Fatalf("names=%v, want %v", got, wantNames)
				}

				if len(lc.layout.stub) > 0 {
					head := make([]byte, len(lc.layout.stub))
					f, err := os.Open(path)
					if err != nil {
						t.Fatalf("Open stub: %v", err)
					}
					_, err = io.ReadFull(f, head)
					_ = f.Close()
					if err != nil || !bytes.Equal(head, lc.layout.stub) {
						t.Fatalf("leading stub changed (err=%v)", err)
					}
				}

				r, err := Open(path, ModeReadOnly)
				if err != nil {
					t.Fatalf("Open(read): %v", err)
				}
				defer func() { _ = r.Close() }()

				for _, f := range files {
					if isFolderName(f.name) || slices.Contains(tc.removed, f.name) {
						continue
					}

					got, err := r.ReadEntry(f.name)
					if err != nil {
						t.Fatalf("ReadEntry(%q): %v", f.name, err)
					}
					if !bytes.Equal(got, f.data) {
						t.Fatalf("ReadEntry(%q) differs from written payload", f.name)
					}
				}

				assertForeignReadable(t, path)
			})
		}
	}
}
