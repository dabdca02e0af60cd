// Package fileutil derives safe output filenames for encoded videos.
package fileutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	outputSuffix  = "_visualization.mp4"
	maxBaseLength = 120
	fallbackBase  = "score"
)

// OutputFilename builds the download name for an encoded video. The score
// title is preferred; when it is empty the uploaded filename's base is used
// instead. The result is NFC-normalized and stripped of characters that are
// unsafe in filenames or HTTP headers.
func OutputFilename(title, uploadName string) string {
	base := SanitizeBase(title)
	if base == "" {
		base = SanitizeBase(strings.TrimSuffix(filepath.Base(uploadName), filepath.Ext(uploadName)))
	}
	if base == "" {
		base = fallbackBase
	}
	if len(base) > maxBaseLength {
		base = strings.TrimRight(base[:maxBaseLength], "_")
	}
	return base + outputSuffix
}

// SanitizeBase normalizes a name fragment to NFC and maps everything outside
// letters, digits, '-' and '.' to underscores, collapsing runs.
func SanitizeBase(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "._")
}
