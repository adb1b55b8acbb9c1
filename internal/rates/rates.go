// Package rates defines the rate table data model shared by the parser subsystem.
package rates

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidCode indicates a currency code that does not match the expected format.
var ErrInvalidCode = errors.New("invalid currency code format")

// Normalize uppercases a currency code and strips surrounding whitespace.
// It does not validate the format; use ValidateCode for user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode normalizes a currency code and checks it is 2-5 ASCII letters.
func ValidateCode(code string) (string, error) {
	norm := Normalize(code)
	if len(norm) < 2 || len(norm) > 5 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	for _, c := range norm {
		if c < 'A' || c > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
		}
	}
	return norm, nil
}

// Entry is a single cached exchange rate: one unit of Code costs Value units of Base.
type Entry struct {
	Code      string    `json:"code"`
	Value     float64   `json:"rate"`
	Base      string    `json:"base"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"updated_at"`
}

// Valid reports whether the entry carries a positive rate and a well-formed code.
func (e Entry) Valid() bool {
	if e.Value <= 0 {
		return false
	}
	if _, err := ValidateCode(e.Code); err != nil {
		return false
	}
	return true
}

// Table maps a normalized currency code to its rate entry.
// All entries in a table share the same base currency.
type Table map[string]Entry

// Set inserts an entry under its normalized code, dropping invalid entries.
func (t Table) Set(e Entry) bool {
	if !e.Valid() {
		return false
	}
	e.Code = Normalize(e.Code)
	t[e.Code] = e
	return true
}

// Clone returns a shallow copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for code, e := range t {
		out[code] = e
	}
	return out
}

// Codes returns the sorted list of codes in the table.
func (t Table) Codes() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Snapshot is an immutable view of the cache state handed out to readers.
// Once published a snapshot is never mutated; a refresh installs a new one.
type Snapshot struct {
	Base          string    `json:"base"`
	Table         Table     `json:"pairs"`
	LastRefreshAt time.Time `json:"last_refresh"`
}

// EmptySnapshot returns a snapshot with no entries for the given base currency.
func EmptySnapshot(base string) *Snapshot {
	return &Snapshot{
		Base:  Normalize(base),
		Table: Table{},
	}
}
