// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lang normalizes the free-form language tags returned by the
// search API ("English", "en", "ENG", "Spanish") to ISO 639-1 codes.
package lang

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Unknown is the tag used when a document carries no language.
const Unknown = "xx"

// English is the ISO 639-1 code for English.
const English = "en"

// table maps lowercased language names, ISO 639-1 codes, and ISO 639-3 codes
// to lowercase ISO 639-1 codes. Built once from lingua's language list.
var table = buildTable()

func buildTable() map[string]string {
	m := make(map[string]string)
	for _, l := range lingua.AllLanguages() {
		code := strings.ToLower(l.IsoCode639_1().String())
		m[strings.ToLower(l.String())] = code
		m[code] = code
		m[strings.ToLower(l.IsoCode639_3().String())] = code
	}
	return m
}

// Normalize returns the ISO 639-1 code for tag when it names a known
// language, the lowercased tag otherwise, and Unknown for an empty tag.
func Normalize(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == "" {
		return Unknown
	}
	if code, ok := table[t]; ok {
		return code
	}
	return t
}

// IsEnglish reports whether tag denotes English.
func IsEnglish(tag string) bool {
	return Normalize(tag) == English
}
