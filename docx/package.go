package docx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"

	"cvstyle/archive"
	"cvstyle/ooxml"
)

const (
	partContentTypes = "[Content_Types].xml"
	partRels         = "_rels/.rels"
	partDocumentRels = "word/_rels/document.xml.rels"

	nsContentTypes  = "http://schemas.openxmlformats.org/package/2006/content-types"
	nsRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"

	relOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relStyles         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relNumbering      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering"

	mediaTypeDocument = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	mediaTypeRels     = "application/vnd.openxmlformats-package.relationships+xml"
)

// Open loads document with its numbering and styles parts from package.
func Open(path string, log *zap.Logger) (*Document, error) {
	parts, err := archive.ReadParts(path, ooxml.PartDocument, ooxml.PartNumbering, ooxml.PartStyles)
	if err != nil {
		return nil, fmt.Errorf("unable to read package (%s): %w", path, err)
	}
	data, ok := parts[ooxml.PartDocument]
	if !ok {
		return nil, fmt.Errorf("package (%s) has no %s part", path, ooxml.PartDocument)
	}
	d, err := Parse(data, log)
	if err != nil {
		return nil, fmt.Errorf("package (%s): %w", path, err)
	}
	if data, ok := parts[ooxml.PartNumbering]; ok {
		if err := d.ParseNumbering(data); err != nil {
			return nil, fmt.Errorf("package (%s): %w", path, err)
		}
	}
	d.styles = parts[ooxml.PartStyles]
	d.source = path
	return d, nil
}

// Save writes document package. Parts of the source package this document
// does not manage are copied as is.
func (d *Document) Save(path string) error {
	replaced := make(map[string][]byte)

	data, err := d.DocumentXML()
	if err != nil {
		return err
	}
	replaced[ooxml.PartDocument] = data
	if data, err = d.NumberingXML(); err != nil {
		return err
	} else if data != nil {
		replaced[ooxml.PartNumbering] = data
	}
	if d.styles != nil {
		replaced[ooxml.PartStyles] = d.styles
	}

	if d.source == "" {
		return d.writeNew(path, replaced)
	}
	return d.repackage(path, replaced)
}

func (d *Document) writeNew(path string, replaced map[string][]byte) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", path, err)
	}
	defer out.Close()

	w := fixzip.NewWriter(out)

	types, err := patchContentTypes(nil, replaced)
	if err != nil {
		return err
	}
	rels, err := patchRels(nil, relOfficeDocument, "word/document.xml")
	if err != nil {
		return err
	}
	docRels, err := patchDocumentRels(nil, replaced)
	if err != nil {
		return err
	}
	files := []struct {
		name string
		data []byte
	}{
		{partContentTypes, types},
		{partRels, rels},
		{ooxml.PartDocument, replaced[ooxml.PartDocument]},
		{partDocumentRels, docRels},
		{ooxml.PartStyles, replaced[ooxml.PartStyles]},
		{ooxml.PartNumbering, replaced[ooxml.PartNumbering]},
	}
	for _, f := range files {
		if f.data == nil {
			continue
		}
		if err := writePart(w, f.name, f.data); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finalize target file (%s): %w", path, err)
	}
	d.log.Debug("Package written", zap.String("path", path), zap.Int("parts", len(replaced)))
	return nil
}

// repackage copies source package replacing managed parts. Source and target
// may be the same file, so the result goes to a temporary file first.
func (d *Document) repackage(path string, replaced map[string][]byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cvstyle-*.docx")
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := d.copyPackage(tmp, replaced); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to write temporary file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("unable to write target file (%s): %w", path, err)
	}
	d.log.Debug("Package rewritten", zap.String("source", d.source), zap.String("path", path))
	return nil
}

func (d *Document) copyPackage(out io.Writer, replaced map[string][]byte) error {
	r, err := fixzip.OpenReader(d.source)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", d.source, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)

	seen := make(map[string]bool)
	for _, file := range r.File {
		name := file.Name
		seen[name] = true

		var patched []byte
		switch {
		case name == partContentTypes || name == partDocumentRels:
			src, err := readZipFile(file)
			if err != nil {
				return fmt.Errorf("unable to read part (%s): %w", name, err)
			}
			if name == partContentTypes {
				patched, err = patchContentTypes(src, replaced)
			} else {
				patched, err = patchDocumentRels(src, replaced)
			}
			if err != nil {
				return err
			}
		case replaced[name] != nil:
			patched = replaced[name]
		}
		if patched != nil {
			if err := writePart(w, name, patched); err != nil {
				return fmt.Errorf("unable to write part (%s): %w", name, err)
			}
			continue
		}

		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to copy part (%s): %w", name, err)
		}
	}

	// parts which did not exist in the source package
	for _, name := range []string{ooxml.PartStyles, ooxml.PartNumbering} {
		if data := replaced[name]; data != nil && !seen[name] {
			if err := writePart(w, name, data); err != nil {
				return fmt.Errorf("unable to write part (%s): %w", name, err)
			}
		}
	}
	return w.Close()
}

func readZipFile(file *fixzip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, archive.MaxPartSize))
}

func writePart(w *fixzip.Writer, name string, data []byte) error {
	fw, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

func readOrCreate(src []byte, root, ns string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if src != nil {
		if err := doc.ReadFromBytes(src); err != nil {
			return nil, err
		}
		return doc, nil
	}
	doc = ooxml.NewDocument()
	doc.CreateElement(root).CreateAttr("xmlns", ns)
	return doc, nil
}

// patchContentTypes makes sure every managed part has an override.
func patchContentTypes(src []byte, replaced map[string][]byte) ([]byte, error) {
	doc, err := readOrCreate(src, "Types", nsContentTypes)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", partContentTypes, err)
	}
	root := doc.Root()

	hasDefault := false
	for _, def := range root.SelectElements("Default") {
		if def.SelectAttrValue("Extension", "") == "rels" {
			hasDefault = true
		}
	}
	if !hasDefault {
		def := root.CreateElement("Default")
		def.CreateAttr("Extension", "rels")
		def.CreateAttr("ContentType", mediaTypeRels)
		def = root.CreateElement("Default")
		def.CreateAttr("Extension", "xml")
		def.CreateAttr("ContentType", "application/xml")
	}

	overrides := []struct{ part, media string }{
		{ooxml.PartDocument, mediaTypeDocument},
		{ooxml.PartStyles, ooxml.MediaTypeStyles},
		{ooxml.PartNumbering, ooxml.MediaTypeNumbering},
	}
	for _, o := range overrides {
		if replaced[o.part] == nil {
			continue
		}
		found := false
		for _, el := range root.SelectElements("Override") {
			if el.SelectAttrValue("PartName", "") == "/"+o.part {
				found = true
				break
			}
		}
		if !found {
			el := root.CreateElement("Override")
			el.CreateAttr("PartName", "/"+o.part)
			el.CreateAttr("ContentType", o.media)
		}
	}
	return doc.WriteToBytes()
}

// patchRels adds relationship of given type unless one exists.
func patchRels(src []byte, relType, target string) ([]byte, error) {
	doc, err := readOrCreate(src, "Relationships", nsRelationships)
	if err != nil {
		return nil, fmt.Errorf("unable to parse relationships: %w", err)
	}
	addRel(doc.Root(), relType, target)
	return doc.WriteToBytes()
}

func patchDocumentRels(src []byte, replaced map[string][]byte) ([]byte, error) {
	doc, err := readOrCreate(src, "Relationships", nsRelationships)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", partDocumentRels, err)
	}
	if replaced[ooxml.PartStyles] != nil {
		addRel(doc.Root(), relStyles, "styles.xml")
	}
	if replaced[ooxml.PartNumbering] != nil {
		addRel(doc.Root(), relNumbering, "numbering.xml")
	}
	return doc.WriteToBytes()
}

func addRel(root *etree.Element, relType, target string) {
	ids := make(map[string]bool)
	for _, rel := range root.SelectElements("Relationship") {
		if rel.SelectAttrValue("Type", "") == relType {
			return
		}
		ids[rel.SelectAttrValue("Id", "")] = true
	}
	n := 1
	for ids["rId"+strconv.Itoa(n)] {
		n++
	}
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", "rId"+strconv.Itoa(n))
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
}
