// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pathname derives the storage path of a selected document. Paths are
// a pure function of the document and project, which is what lets the
// downloader treat an existing file as already fetched.
package pathname

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/projdocs/internal/lang"
	"github.com/pdiddy/projdocs/pkg/types"
)

// MaxSlugLen bounds slug length in runes.
const MaxSlugLen = 120

// Placeholders for missing fields.
const (
	NoReportNumber = "NO-REPNB"
	NoDate         = "0000-00-00"
	NoName         = "unknown"
	NoCountry      = "Unknown"
)

// Slug returns a filesystem-safe form of s: NFKD-normalized with diacritics
// removed, lowercased, runs of non-alphanumerics collapsed to one hyphen,
// trimmed of hyphens, and cut to MaxSlugLen runes.
func Slug(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	out := []rune(b.String())
	if len(out) > MaxSlugLen {
		out = out[:MaxSlugLen]
	}
	return strings.TrimRight(string(out), "-")
}

// Namer builds document paths under Root.
type Namer struct {
	Root string
}

// ProjectDir returns {root}/{country}/{id}_{slug(title)}. A title with no
// letters or digits is replaced by NoName.
func (n Namer) ProjectDir(p types.ProjectRecord) string {
	title := Slug(p.Title)
	if title == "" {
		title = NoName
	}
	return filepath.Join(n.Root, component(p.Country, NoCountry), component(p.ID+"_"+title, ""))
}

// Build returns
// {root}/{country}/{id}_{slug(title)}/{type}/{date}_{repnb}_{slug(name)}_{lang}.pdf.
func (n Namer) Build(doc types.SelectedDocument, p types.ProjectRecord) string {
	return filepath.Join(n.ProjectDir(p), string(doc.Type), Filename(doc))
}

// Filename returns {date}_{repnb}_{slug(name)}_{lang}.pdf with placeholders
// for missing fields.
func Filename(doc types.SelectedDocument) string {
	name := Slug(doc.DisplayName)
	if name == "" {
		name = NoName
	}
	tag := Slug(lang.Normalize(doc.Language))
	if tag == "" {
		tag = lang.Unknown
	}
	return fmt.Sprintf("%s_%s_%s_%s.pdf",
		component(doc.Date, NoDate),
		component(doc.ReportNumber, NoReportNumber),
		name,
		tag,
	)
}

// component makes a free-text value safe as a single path element.
func component(s, fallback string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "-", `\`, "-").Replace(s)
	if s == "" || s == "." || s == ".." {
		return fallback
	}
	return s
}
