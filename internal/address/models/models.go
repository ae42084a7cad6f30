// Package models defines the address values shared by lookup, capture and the
// address book.
package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Candidate is an address returned by a lookup, not yet tied to a person.
// Identity is ID; the remaining fields are descriptive. Lat and Lon are nil
// when the lookup did not report them. Extra holds every other field of the
// lookup result as the raw JSON it arrived as.
type Candidate struct {
	ID          string                     `json:"id"`
	PostCode    string                     `json:"postcode,omitempty"`
	HouseNumber string                     `json:"houseNumber,omitempty"`
	Street      string                     `json:"street,omitempty"`
	City        string                     `json:"city,omitempty"`
	Lat         *float64                   `json:"lat,omitempty"`
	Lon         *float64                   `json:"lon,omitempty"`
	Extra       map[string]json.RawMessage `json:"extra,omitempty"`
}

// WithHouseNumber returns a copy of c carrying houseNumber. Lookup results do
// not include the house number, so the workflow stamps the searched one.
func (c Candidate) WithHouseNumber(houseNumber string) Candidate {
	out := c.Clone()
	out.HouseNumber = houseNumber
	return out
}

// Clone returns a copy that shares no mutable state with c.
func (c Candidate) Clone() Candidate {
	c.Lat = cloneFloat(c.Lat)
	c.Lon = cloneFloat(c.Lon)
	if c.Extra != nil {
		extra := make(map[string]json.RawMessage, len(c.Extra))
		for k, v := range c.Extra {
			extra[k] = bytes.Clone(v)
		}
		c.Extra = extra
	}
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// CloneCandidates copies a candidate slice; nil stays nil-safe as an empty slice.
func CloneCandidates(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// FindCandidate returns the candidate with id from list.
func FindCandidate(list []Candidate, id string) (Candidate, bool) {
	for _, c := range list {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// PersonalInfo is the person attached to a committed address.
type PersonalInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Trimmed returns p with surrounding whitespace removed from both names.
func (p PersonalInfo) Trimmed() PersonalInfo {
	return PersonalInfo{
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
	}
}

// Complete reports whether both names are non-empty after trimming.
func (p PersonalInfo) Complete() bool {
	t := p.Trimmed()
	return t.FirstName != "" && t.LastName != ""
}

// Entry is one address book record: a resolved candidate plus its person.
type Entry struct {
	Candidate
	PersonalInfo
}

// NewEntry combines a candidate and person into an Entry.
func NewEntry(c Candidate, p PersonalInfo) Entry {
	return Entry{Candidate: c.Clone(), PersonalInfo: p}
}

// Clone returns a copy that shares no mutable state with e.
func (e Entry) Clone() Entry {
	e.Candidate = e.Candidate.Clone()
	return e
}
