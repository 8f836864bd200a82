package storage

import (
	"fmt"
	"strings"
)

const (
	DocPassport = "passport"
	DocPhoto    = "photo"
)

// Violation codes.
const (
	CodeInvalidFile     = "INVALID_FILE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeInvalidMimeType = "INVALID_MIME_TYPE"
)

// Rule constrains one document type.
type Rule struct {
	Label      string
	Extensions []string
	MimeTypes  []string
	MaxBytes   int64
}

// Rules maps document type to its rule.
type Rules map[string]Rule

// Violation explains why a document was rejected.
type Violation struct {
	Document string
	Code     string
	Message  string
}

func (v *Violation) Error() string { return fmt.Sprintf("%s: %s", v.Code, v.Message) }

// DefaultRules: passport PDF up to 5MB, photo JPEG/PNG up to 2MB.
func DefaultRules() Rules {
	return Rules{
		DocPassport: {
			Label:      "Passport",
			Extensions: []string{"pdf"},
			MimeTypes:  []string{"application/pdf"},
			MaxBytes:   5 << 20,
		},
		DocPhoto: {
			Label:      "Photo",
			Extensions: []string{"jpg", "jpeg", "png"},
			MimeTypes:  []string{"image/jpeg", "image/png"},
			MaxBytes:   2 << 20,
		},
	}
}

// Check returns the first rule m breaks, or nil. Unknown document types pass.
func (rs Rules) Check(doc string, m Metadata) *Violation {
	rule, ok := rs[doc]
	if !ok {
		return nil
	}
	if m.SizeBytes == 0 {
		return &Violation{doc, CodeInvalidFile, fmt.Sprintf("%s file is required and cannot be empty", rule.Label)}
	}
	if !contains(rule.Extensions, strings.ToLower(m.Extension)) {
		return &Violation{doc, CodeInvalidFileType,
			fmt.Sprintf("%s must be a %s file", rule.Label, strings.ToUpper(strings.Join(rule.Extensions, ", ")))}
	}
	if rule.MaxBytes > 0 && m.SizeBytes > rule.MaxBytes {
		return &Violation{doc, CodeFileTooLarge,
			fmt.Sprintf("%s file size must not exceed %dMB", rule.Label, rule.MaxBytes>>20)}
	}
	mime, _, _ := strings.Cut(m.MimeType, ";")
	if !contains(rule.MimeTypes, strings.TrimSpace(mime)) {
		return &Violation{doc, CodeInvalidMimeType,
			fmt.Sprintf("%s must have correct MIME type (%s)", rule.Label, strings.Join(rule.MimeTypes, " or "))}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
