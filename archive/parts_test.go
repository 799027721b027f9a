package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func makePackage(t *testing.T, files map[string]string, dirs ...string) string {
	t.Helper()

	pkg := filepath.Join(t.TempDir(), "test.docx")
	out, err := os.Create(pkg)
	if err != nil {
		t.Fatalf("Failed to create package: %v", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for _, d := range dirs {
		hdr := &zip.FileHeader{Name: d}
		hdr.SetMode(os.ModeDir | 0755)
		if _, err := w.CreateHeader(hdr); err != nil {
			t.Fatalf("Failed to create directory %s: %v", d, err)
		}
	}
	for name, content := range files {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create part %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write part %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close package: %v", err)
	}
	return pkg
}

func TestWalk(t *testing.T) {
	pkg := makePackage(t, map[string]string{
		"[Content_Types].xml":          "<Types/>",
		"_rels/.rels":                  "<Relationships/>",
		"word/document.xml":            "<w:document/>",
		"word/styles.xml":              "<w:styles/>",
		"word/_rels/document.xml.rels": "<Relationships/>",
	}, "word/")

	tests := []struct {
		prefix string
		want   int
	}{
		{"word/", 3},
		{"_rels/", 1},
		{"", 5},
		{"Word/", 0},
		{"customXml/", 0},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			var visited int
			err := Walk(pkg, tt.prefix, func(p string, f *zip.File) error {
				if p != pkg {
					t.Errorf("package = %s, want %s", p, pkg)
				}
				visited++
				return nil
			})
			if err != nil {
				t.Fatalf("Walk() error = %v", err)
			}
			if visited != tt.want {
				t.Errorf("visited %d parts, want %d", visited, tt.want)
			}
		})
	}
}

func TestWalk_Stops(t *testing.T) {
	pkg := makePackage(t, map[string]string{"a.xml": "a", "b.xml": "b", "c.xml": "c"})

	stop := errors.New("stop")
	var visited int
	err := Walk(pkg, "", func(string, *zip.File) error {
		visited++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Walk() error = %v, want %v", err, stop)
	}
	if visited != 1 {
		t.Errorf("visited %d parts, want 1", visited)
	}
}

func TestWalk_UnsafeNames(t *testing.T) {
	pkg := makePackage(t, map[string]string{"word/../../evil.xml": "x"})
	if err := Walk(pkg, "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("expected error for traversing part name")
	}
}

func TestWalk_InvalidPackage(t *testing.T) {
	if err := Walk("/nonexistent/file.docx", "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("expected error for missing package")
	}

	bad := filepath.Join(t.TempDir(), "bad.docx")
	if err := os.WriteFile(bad, []byte("not a zip file"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Walk(bad, "", func(string, *zip.File) error { return nil }); err == nil {
		t.Error("expected error for invalid package")
	}
}

func TestReadParts(t *testing.T) {
	pkg := makePackage(t, map[string]string{
		"word/document.xml": "<w:document/>",
		"word/styles.xml":   "<w:styles/>",
	})

	parts, err := ReadParts(pkg, "word/document.xml", "word/numbering.xml")
	if err != nil {
		t.Fatalf("ReadParts() error = %v", err)
	}
	if len(parts) != 1 {
		t.Errorf("got %d parts, want 1", len(parts))
	}
	if got := string(parts["word/document.xml"]); got != "<w:document/>" {
		t.Errorf("document part = %q", got)
	}
	if _, ok := parts["word/numbering.xml"]; ok {
		t.Error("missing part must be absent")
	}
}

func TestPartNames(t *testing.T) {
	pkg := makePackage(t, map[string]string{"word/document.xml": "x"}, "word/")
	names, err := PartNames(pkg)
	if err != nil {
		t.Fatalf("PartNames() error = %v", err)
	}
	if len(names) != 1 || names[0] != "word/document.xml" {
		t.Errorf("PartNames() = %v", names)
	}
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"word/document.xml", true},
		{"[Content_Types].xml", true},
		{"/etc/passwd", false},
		{`\windows\system32`, false},
		{"word/../../x", false},
		{"..", false},
		{"a..b/c", true},
	}
	for _, tt := range tests {
		if got := isSafePath(tt.name); got != tt.want {
			t.Errorf("isSafePath(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
