// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the projdocs pipeline:
// project records read from the catalog, document records returned by the
// document-search API, and the manifest and summary rows written by the ledger.
package types

// ProjectRecord identifies one development project from the input list.
// It is read once at the start of a run and never mutated.
type ProjectRecord struct {
	// ID is the project identifier (e.g. "P123456").
	ID string `json:"id" yaml:"id"`

	// Country is the borrower country as written in the input list.
	Country string `json:"country" yaml:"country"`

	// Title is the project name.
	Title string `json:"title" yaml:"title"`
}

// RawDocument is one document record from the search API, normalized to a
// single flat shape regardless of the response format it arrived in.
type RawDocument struct {
	// DisplayName is the document title (WDS "docna").
	DisplayName string `json:"display_name" yaml:"display_name"`

	// DeclaredType is the document type reported by the API (WDS "docty").
	DeclaredType string `json:"declared_type" yaml:"declared_type"`

	// Date is the document date as YYYY-MM-DD, or empty when unknown.
	Date string `json:"date" yaml:"date"`

	// ReportNumber is the report number (WDS "repnb").
	ReportNumber string `json:"report_number" yaml:"report_number"`

	// Language is the language tag exactly as returned (e.g. "English").
	Language string `json:"language" yaml:"language"`

	// SourceURL is the document landing page (WDS "url").
	SourceURL string `json:"source_url" yaml:"source_url"`

	// FileURL is the direct file link (WDS "pdfurl"), possibly empty.
	FileURL string `json:"file_url" yaml:"file_url"`
}

// DocType is the resolved document type.
type DocType string

const (
	DocPID DocType = "PID"
	DocPAD DocType = "PAD"
)

// DocTypes lists the resolved types in processing order.
var DocTypes = []DocType{DocPID, DocPAD}

// ClassifiedDocument is a RawDocument with a resolved type.
type ClassifiedDocument struct {
	RawDocument
	Type DocType `json:"type" yaml:"type"`
}

// SelectedDocument is a ClassifiedDocument chosen for download.
type SelectedDocument ClassifiedDocument
