package recap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMonthlyDocuments_SortsAndFilters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	write("2021-03.md", "march line one\nmarch line two\n")
	write("2021-02.txt", "feb line\n")
	write("2022-01.md", "jan line\n")
	// Ignored: bad key, bad month, wrong extension, non-month files.
	write("notes.md", "not a month\n")
	write("2021-13.md", "invalid month\n")
	write("2021-3.md", "unpadded month\n")
	write("2021-02.json", "wrong extension\n")
	if err := os.Mkdir(filepath.Join(dir, "2021-04.md"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	docs, err := LoadMonthlyDocuments(dir)
	if err != nil {
		t.Fatalf("LoadMonthlyDocuments: %v", err)
	}

	wantKeys := []string{"2021-02", "2021-03", "2022-01"}
	if len(docs) != len(wantKeys) {
		t.Fatalf("got %d docs, want %d", len(docs), len(wantKeys))
	}
	for i, want := range wantKeys {
		if docs[i].Key != want {
			t.Fatalf("docs[%d].Key=%q want=%q", i, docs[i].Key, want)
		}
	}

	if docs[1].Label != "March 2021" {
		t.Fatalf("label=%q", docs[1].Label)
	}
	if len(docs[0].Lines) != 1 || docs[0].Lines[0] != "feb line" {
		t.Fatalf("lines=%v", docs[0].Lines)
	}
}

func TestLoadMonthlyDocuments_Errors(t *testing.T) {
	t.Parallel()

	if _, err := LoadMonthlyDocuments(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing directory")
	}

	empty := t.TempDir()
	if err := os.WriteFile(filepath.Join(empty, "readme.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadMonthlyDocuments(empty); err == nil {
		t.Fatalf("expected error when no month files match")
	}
}

func TestMonthLabel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key  string
		want string
	}{
		{key: "2021-02", want: "February 2021"},
		{key: "1999-12", want: "December 1999"},
		{key: "garbage", want: "garbage"},
	}
	for _, tc := range cases {
		if got := MonthLabel(tc.key); got != tc.want {
			t.Fatalf("MonthLabel(%q)=%q want=%q", tc.key, got, tc.want)
		}
	}
}

func TestSplitLines_NormalizesEndings(t *testing.T) {
	t.Parallel()

	got := splitLines("a\r\nb\rc\n\n")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d]=%q want=%q", i, got[i], want[i])
		}
	}

	if splitLines("") != nil {
		t.Fatalf("empty input should yield nil")
	}
}
