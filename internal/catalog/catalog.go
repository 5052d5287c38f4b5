// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog reads the input project list: a delimited file with an
// identifier, a country, and a title column.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pdiddy/projdocs/pkg/types"
)

// Default column names, matching the World Bank project list export.
const (
	DefaultIDColumn      = "Project Id"
	DefaultCountryColumn = "Country"
	DefaultTitleColumn   = "Project Name"
)

const utf8BOM = "\ufeff"

// Columns names the header columns that hold each ProjectRecord field.
type Columns struct {
	ID      string
	Country string
	Title   string

	// Comma is the field delimiter (default ',').
	Comma rune
}

// DefaultColumns returns the column names of the World Bank project export.
func DefaultColumns() Columns {
	return Columns{
		ID:      DefaultIDColumn,
		Country: DefaultCountryColumn,
		Title:   DefaultTitleColumn,
		Comma:   ',',
	}
}

// ConfigurationError reports an input problem that must abort the run before
// any network activity: an unreadable file or missing required columns.
type ConfigurationError struct {
	Path    string
	Missing []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing required columns: %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Catalog yields ProjectRecords from an open project list. It is not
// restartable; call Open again to read from the beginning.
type Catalog struct {
	f      *os.File
	r      *csv.Reader
	path   string
	idx    [3]int
	logger *slog.Logger
}

// Open opens path and validates that the header holds every column in cols.
func Open(path string, cols Columns, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	c, err := newCatalog(f, path, cols, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	c.f = f
	return c, nil
}

func newCatalog(r io.Reader, path string, cols Columns, logger *slog.Logger) (*Catalog, error) {
	cr := csv.NewReader(r)
	if cols.Comma != 0 {
		cr.Comma = cols.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ConfigurationError{Path: path, Err: errors.New("empty project list")}
	}
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("reading header: %w", err)}
	}

	positions := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)
		if _, dup := positions[name]; !dup {
			positions[name] = i
		}
	}

	c := &Catalog{r: cr, path: path, logger: logger}
	var missing []string
	for i, name := range []string{cols.ID, cols.Country, cols.Title} {
		pos, ok := positions[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		c.idx[i] = pos
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Path: path, Missing: missing}
	}
	return c, nil
}

// Next returns the next project with a non-empty identifier. Rows with an
// empty identifier are logged and skipped. It returns io.EOF after the last row.
func (c *Catalog) Next() (types.ProjectRecord, error) {
	for {
		row, err := c.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return types.ProjectRecord{}, io.EOF
			}
			return types.ProjectRecord{}, fmt.Errorf("reading %s: %w", c.path, err)
		}

		p := types.ProjectRecord{
			ID:      field(row, c.idx[0]),
			Country: field(row, c.idx[1]),
			Title:   field(row, c.idx[2]),
		}
		if p.ID == "" {
			line, _ := c.r.FieldPos(0)
			c.logger.Warn("skipping project with empty identifier", "file", c.path, "line", line)
			continue
		}
		return p, nil
	}
}

// Close releases the underlying file.
func (c *Catalog) Close() error {
	if c.f == nil {
		return nil
	}
	return c.f.Close()
}

// ReadAll drains the catalog.
func ReadAll(c *Catalog) ([]types.ProjectRecord, error) {
	var out []types.ProjectRecord
	for {
		p, err := c.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
