// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection narrows the classified documents of one type to the
// subset worth downloading under a language and recency policy.
package selection

import (
	"github.com/pdiddy/projdocs/internal/lang"
	"github.com/pdiddy/projdocs/pkg/types"
)

// Select applies the language step and then, when latestOnly is set, the
// recency step. Input order is preserved.
//
// In LanguagesEnglish mode, when no document is tagged English the first
// document of docs is returned instead of nothing. The fallback is not a
// guarantee of English content.
func Select(docs []types.ClassifiedDocument, mode types.LanguageMode, latestOnly bool) []types.SelectedDocument {
	kept := byLanguage(docs, mode)
	if latestOnly {
		kept = latest(kept)
	}
	out := make([]types.SelectedDocument, len(kept))
	for i, d := range kept {
		out[i] = types.SelectedDocument(d)
	}
	return out
}

func byLanguage(docs []types.ClassifiedDocument, mode types.LanguageMode) []types.ClassifiedDocument {
	if mode == types.LanguagesAll {
		return docs
	}
	var english []types.ClassifiedDocument
	for _, d := range docs {
		if lang.IsEnglish(d.Language) {
			english = append(english, d)
		}
	}
	if len(english) == 0 && len(docs) > 0 {
		return docs[:1]
	}
	return english
}

// latest keeps the newest document per normalized language. Groups are
// emitted in first-seen order; on equal dates the earlier document wins.
// Dates are YYYY-MM-DD, so string order is date order and empty sorts first.
func latest(docs []types.ClassifiedDocument) []types.ClassifiedDocument {
	best := make(map[string]int)
	var order []string
	for i, d := range docs {
		key := lang.Normalize(d.Language)
		j, ok := best[key]
		if !ok {
			best[key] = i
			order = append(order, key)
			continue
		}
		if d.Date > docs[j].Date {
			best[key] = i
		}
	}
	out := make([]types.ClassifiedDocument, 0, len(order))
	for _, key := range order {
		out = append(out, docs[best[key]])
	}
	return out
}
