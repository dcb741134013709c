package queue

import (
	"fmt"
	"strings"

	"pixelpost/internal/services"
)

// ErrMalformedRecord marks a record with fewer than two fields.
var ErrMalformedRecord = services.Sentinel("malformed queue record", services.ErrValidation)

// Field positions within a record.
const (
	FieldMediaRef = iota
	FieldCaption
	FieldAltText
	FieldSensitive
	FieldContentWarning
)

// Record is the raw ordered text fields of one queue line.
type Record []string

// Item is a parsed queue head.
type Item struct {
	MediaRef       string
	Caption        string
	AltText        string
	Sensitive      bool
	ContentWarning string
}

// Parse converts a record to an Item. All fields are whitespace-trimmed.
func Parse(rec Record) (Item, error) {
	if len(rec) < 2 {
		return Item{}, fmt.Errorf("%w: expected at least 2 fields, got %d", ErrMalformedRecord, len(rec))
	}
	item := Item{
		MediaRef: strings.TrimSpace(rec[FieldMediaRef]),
		Caption:  strings.TrimSpace(rec[FieldCaption]),
	}
	if len(rec) > FieldAltText {
		item.AltText = strings.TrimSpace(rec[FieldAltText])
	}
	if len(rec) > FieldSensitive {
		item.Sensitive = ParseSensitive(rec[FieldSensitive])
	}
	if len(rec) > FieldContentWarning {
		item.ContentWarning = strings.TrimSpace(rec[FieldContentWarning])
	}
	return item, nil
}

// ParseSensitive reports whether value is one of 1, true or yes, case-insensitively.
func ParseSensitive(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// Record renders an Item back to record form, dropping empty trailing fields.
func (i Item) Record() Record {
	sensitive := ""
	if i.Sensitive {
		sensitive = "1"
	}
	rec := Record{i.MediaRef, i.Caption, i.AltText, sensitive, i.ContentWarning}
	for len(rec) > 2 && rec[len(rec)-1] == "" {
		rec = rec[:len(rec)-1]
	}
	return rec
}
