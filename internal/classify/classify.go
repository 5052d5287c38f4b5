// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify maps raw document records to PID or PAD using two
// compiled, case-insensitive patterns.
package classify

import (
	"regexp"

	"github.com/pdiddy/projdocs/pkg/types"
)

// PIDPattern matches Project Information Documents: the full phrase, the
// "PID" abbreviation, "PID/ISDS", and concept- or appraisal-stage documents.
var PIDPattern = regexp.MustCompile(`(?i)\bproject information document\b|\bpid\b|pid\s*/\s*isds|(concept|appraisal)\s*stage`)

// PADPattern matches Project or Program Appraisal Documents and the "PAD"
// abbreviation.
var PADPattern = regexp.MustCompile(`(?i)\b(project|program)\s+appraisal\s+document\b|\bpad\b`)

// rules are evaluated in order; the first match wins.
var rules = []struct {
	typ     types.DocType
	pattern *regexp.Regexp
}{
	{types.DocPID, PIDPattern},
	{types.DocPAD, PADPattern},
}

// Classify resolves the document type. Each pattern is tried against the
// declared type, then the display name, and PID is tried in full before PAD.
// It reports false when neither pattern matches either field.
func Classify(doc types.RawDocument) (types.ClassifiedDocument, bool) {
	for _, r := range rules {
		if r.pattern.MatchString(doc.DeclaredType) || r.pattern.MatchString(doc.DisplayName) {
			return types.ClassifiedDocument{RawDocument: doc, Type: r.typ}, true
		}
	}
	return types.ClassifiedDocument{}, false
}

// Partition classifies docs and groups them by type, preserving input order
// within each group. Unmatched documents are dropped.
func Partition(docs []types.RawDocument) map[types.DocType][]types.ClassifiedDocument {
	out := make(map[types.DocType][]types.ClassifiedDocument, len(rules))
	for _, d := range docs {
		if c, ok := Classify(d); ok {
			out[c.Type] = append(out[c.Type], c)
		}
	}
	return out
}
