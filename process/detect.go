package process

import (
	"fmt"
	"slices"

	"github.com/h2non/filetype"

	"cvstyle/archive"
	"cvstyle/ooxml"
)

// isDocumentFile checks whether file is a word processing package. Signature
// sniffing only looks at first local header, so plain zip archives are
// examined for main document part.
func isDocumentFile(path string) (bool, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return false, fmt.Errorf("unable to detect file type: %w", err)
	}
	switch kind.Extension {
	case "docx":
		return true, nil
	case "zip":
		names, err := archive.PartNames(path)
		if err != nil {
			return false, nil
		}
		return slices.Contains(names, ooxml.PartDocument), nil
	}
	return false, nil
}
