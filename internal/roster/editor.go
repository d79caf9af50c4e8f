package roster

import (
	"errors"
	"fmt"

	"github.com/zombor/roster-scan/internal/scanning"
)

var (
	// ErrNotExtracted is returned when editing an identity with no cache entry
	ErrNotExtracted = errors.New("no extraction for identity")

	// ErrUnknownField is returned when an edit names a field outside phone, name, note
	ErrUnknownField = errors.New("unknown field")

	// ErrRowOutOfRange matches every *RowRangeError
	ErrRowOutOfRange = errors.New("row index out of range")
)

// RowRangeError reports an edit that referenced a row that does not exist
type RowRangeError struct {
	Row int
	Len int
}

func (e *RowRangeError) Error() string {
	return fmt.Sprintf("row %d out of range [0,%d)", e.Row, e.Len)
}

// Is makes errors.Is(err, ErrRowOutOfRange) hold
func (e *RowRangeError) Is(target error) bool {
	return target == ErrRowOutOfRange
}

// Editor applies row mutations to one cached record set. Every change is
// written back to the cache so later reads of the identity see it.
type Editor struct {
	cache    *Cache
	identity string
}

// Identity returns the identity the editor is bound to
func (e *Editor) Identity() string {
	return e.identity
}

// AddRow appends a record with every field empty and returns its index
func (e *Editor) AddRow() (int, error) {
	var row int
	err := e.cache.update(e.identity, func(records scanning.RecordSet) (scanning.RecordSet, error) {
		row = len(records)
		return append(records, scanning.Record{}), nil
	})
	if err != nil {
		return 0, err
	}
	return row, nil
}

// UpdateField sets one field of one row
func (e *Editor) UpdateField(row int, field string, value string) error {
	return e.cache.update(e.identity, func(records scanning.RecordSet) (scanning.RecordSet, error) {
		if row < 0 || row >= len(records) {
			return nil, &RowRangeError{Row: row, Len: len(records)}
		}
		switch field {
		case scanning.FieldPhone:
			records[row].Phone = value
		case scanning.FieldName:
			records[row].Name = value
		case scanning.FieldNote:
			records[row].Note = value
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		return records, nil
	})
}

// DeleteRow removes a row; the rows after it move up by one
func (e *Editor) DeleteRow(row int) error {
	return e.cache.update(e.identity, func(records scanning.RecordSet) (scanning.RecordSet, error) {
		if row < 0 || row >= len(records) {
			return nil, &RowRangeError{Row: row, Len: len(records)}
		}
		return append(records[:row], records[row+1:]...), nil
	})
}

// Snapshot returns a copy of the current record set
func (e *Editor) Snapshot() (scanning.RecordSet, error) {
	records, ok, err := e.cache.Get(e.identity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExtracted, e.identity)
	}
	return records, nil
}
