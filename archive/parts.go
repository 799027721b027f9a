// Package archive reads parts of OPC packages (.docx files).
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// MaxPartSize limits uncompressed size of a single part read into memory.
const MaxPartSize = 64 << 20

// WalkFunc is called for each package part visited by Walk. If an error is
// returned, processing stops.
type WalkFunc func(pkg string, file *zip.File) error

// Walk visits all parts of the package whose names start with prefix.
// Packages with absolute or traversing part names are rejected.
func Walk(pkg, prefix string, walkFn WalkFunc) error {
	r, err := zip.OpenReader(pkg)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("package part %q: unsafe name (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, prefix) {
			if err := walkFn(pkg, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadParts loads named parts. Parts missing from the package are absent
// from the result, it is up to the caller to decide which ones are required.
func ReadParts(pkg string, names ...string) (map[string][]byte, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	parts := make(map[string][]byte, len(names))
	err := Walk(pkg, "", func(_ string, f *zip.File) error {
		if !want[f.Name] {
			return nil
		}
		data, err := readPart(f)
		if err != nil {
			return fmt.Errorf("unable to read part %q: %w", f.Name, err)
		}
		parts[f.Name] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// PartNames lists all non directory parts in package order.
func PartNames(pkg string) ([]string, error) {
	var names []string
	err := Walk(pkg, "", func(_ string, f *zip.File) error {
		names = append(names, f.Name)
		return nil
	})
	return names, err
}

func readPart(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > MaxPartSize {
		return nil, fmt.Errorf("part is too large (%d bytes)", f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxPartSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPartSize {
		return nil, fmt.Errorf("part is larger than declared")
	}
	return data, nil
}

// isSafePath returns false for absolute names and names with ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
