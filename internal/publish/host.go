// Package publish drives the tiered, retry-wrapped publication of a
// combined table into the external spreadsheet host.
package publish

import (
	"context"
	"errors"
	"fmt"
)

// DocumentHost is the narrow surface of the spreadsheet/document service the
// publisher needs. Implementations are remote; tests use an in-memory fake.
type DocumentHost interface {
	// CopyTemplate copies an existing spreadsheet, optionally into a folder,
	// and returns the new document id.
	CopyTemplate(ctx context.Context, templateID, title, folderID string) (string, error)
	// CreateNative creates a spreadsheet with one initial sheet.
	CreateNative(ctx context.Context, title, sheetTitle string) (string, error)
	// CreateGenericFile creates a spreadsheet through the generic file API,
	// optionally into a folder. The default sheet keeps the service's name.
	CreateGenericFile(ctx context.Context, title, folderID string) (string, error)
	// RenameDefaultSheet renames the document's first sheet.
	RenameDefaultSheet(ctx context.Context, id, sheetTitle string) error
	// AddSheets adds the given sheets in one call.
	AddSheets(ctx context.Context, id string, titles []string) error
	// WriteRange writes values at an A1 range of the named sheet.
	WriteRange(ctx context.Context, id, sheetTitle, a1Range string, values [][]string) error
	// MoveToFolder files the document into a folder.
	MoveToFolder(ctx context.Context, id, folderID string) error
	// DeleteDocument removes a document. Only diagnostic flows use this.
	DeleteDocument(ctx context.Context, id string) error
	// DocumentURL is the user-facing URL for a document id.
	DocumentURL(id string) string
}

// HostError carries the upstream HTTP status of a failed host call so the
// retry policy and the error taxonomy can branch on it.
type HostError struct {
	Status int
	Op     string
	Body   string
}

func (e *HostError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// StatusOf extracts the upstream status from err, or 0.
func StatusOf(err error) int {
	var he *HostError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
