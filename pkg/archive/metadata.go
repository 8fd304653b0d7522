package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/suddencreator/kibank/pkg/common"
)

// MetadataOptions are the fields used to generate a bank's index.json when
// the source tree does not already carry one at the root.
type MetadataOptions struct {
	Name        string
	Author      string
	Description string
	BankID      string
}

// BuildMetadataBytes renders the index.json payload. When no bank id is
// supplied, one is derived from the author and name.
func BuildMetadataBytes(opts MetadataOptions) ([]byte, error) {
	bankID := opts.BankID
	if bankID == "" {
		var parts []string
		if author := sanitizeIDPart(opts.Author); author != "" {
			parts = append(parts, author)
		}
		if name := sanitizeIDPart(opts.Name); name != "" {
			parts = append(parts, name)
		}
		bankID = strings.Join(parts, ".")
	}

	meta := common.BankMetadata{
		ID:          bankID,
		Name:        opts.Name,
		Author:      opts.Author,
		Description: opts.Description,
	}
	return json.MarshalIndent(meta, "", "  ")
}

// sanitizeIDPart lowercases and keeps only letters and digits.
func sanitizeIDPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FindBackgroundFile returns the path of a root-level background image
// (background.png/jpg/jpeg, first match wins), or "" when none exists.
func FindBackgroundFile(dir string) string {
	for _, ext := range common.BackgroundFileExtensions {
		candidate := filepath.Join(dir, common.BackgroundFileStem+"."+ext)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}
