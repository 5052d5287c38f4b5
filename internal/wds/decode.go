// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package wds

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdiddy/projdocs/pkg/types"
)

// errUnknownShape reports a response with neither a "response" nor a
// "documents" member.
var errUnknownShape = errors.New("unrecognized WDS response shape")

// wdsDoc is one document record as the WDS API emits it. Every field is
// decoded through text because the API mixes strings, arrays, and nested
// index-keyed objects for the same field.
type wdsDoc struct {
	Docna  text `json:"docna"`
	Docty  text `json:"docty"`
	Docdt  text `json:"docdt"`
	Repnb  text `json:"repnb"`
	Lang   text `json:"lang"`
	URL    text `json:"url"`
	PDFURL text `json:"pdfurl"`
}

// Decode reads one WDS response page and returns its records in API order.
// It accepts both response shapes:
//
//	{"response": {"docs": [{...}, ...]}}
//	{"documents": {"D123": {...}, "D456": {...}}}
//
// This is the only place that knows about the two shapes.
func Decode(r io.Reader) ([]types.RawDocument, error) {
	var top map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&top); err != nil {
		return nil, fmt.Errorf("parsing WDS response: %w", err)
	}

	var entries []json.RawMessage
	switch {
	case top["response"] != nil:
		var resp struct {
			Docs []json.RawMessage `json:"docs"`
		}
		if err := json.Unmarshal(top["response"], &resp); err != nil {
			return nil, fmt.Errorf("parsing WDS response.docs: %w", err)
		}
		entries = resp.Docs
	case top["documents"] != nil:
		var err error
		entries, err = orderedEntries(top["documents"])
		if err != nil {
			return nil, fmt.Errorf("parsing WDS documents: %w", err)
		}
	default:
		return nil, errUnknownShape
	}

	docs := make([]types.RawDocument, 0, len(entries))
	for _, e := range entries {
		var d wdsDoc
		if err := json.Unmarshal(e, &d); err != nil {
			return nil, fmt.Errorf("parsing WDS document: %w", err)
		}
		docs = append(docs, d.normalize())
	}
	return docs, nil
}

func (d wdsDoc) normalize() types.RawDocument {
	return types.RawDocument{
		DisplayName:  string(d.Docna),
		DeclaredType: string(d.Docty),
		Date:         normalizeDate(string(d.Docdt)),
		ReportNumber: string(d.Repnb),
		Language:     string(d.Lang),
		SourceURL:    string(d.URL),
		FileURL:      fileURL(string(d.PDFURL), string(d.URL)),
	}
}

// fileURL prefers pdfurl and falls back to url when it points at a PDF.
func fileURL(pdfURL, pageURL string) string {
	if pdfURL != "" {
		return pdfURL
	}
	if strings.Contains(strings.ToLower(pageURL), "pdf") {
		return pageURL
	}
	return ""
}

// normalizeDate trims an ISO timestamp ("2019-05-21T00:00:00Z") to its date.
func normalizeDate(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	return s
}

// orderedEntries returns the object members of a "documents" value in the
// order they appear in the payload. Non-object members such as "facets" are
// skipped. A JSON array is accepted as well.
func orderedEntries(data json.RawMessage) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var out []json.RawMessage
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if key, _ := keyTok.(string); key == "facets" {
			continue
		}
		if v = bytes.TrimSpace(v); len(v) > 0 && v[0] == '{' {
			out = append(out, v)
		}
	}
	return out, nil
}

// text decodes a loosely typed WDS field into a plain string. Strings pass
// through, numbers keep their literal form, arrays yield their first
// non-empty element, and objects yield member "0" (or the first member by key),
// so {"0": {"docna": "Title"}} decodes as "Title".
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(s))
	case '[':
		var arr []text
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*t = ""
		for _, v := range arr {
			if v != "" {
				*t = v
				break
			}
		}
	case '{':
		var obj map[string]text
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if v, ok := obj["0"]; ok {
			*t = v
			return nil
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		*t = ""
		if len(keys) > 0 {
			*t = obj[keys[0]]
		}
	default:
		*t = text(data)
	}
	return nil
}
