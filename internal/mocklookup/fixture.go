// Package mocklookup is a stand-in for the address lookup API, serving
// canned results from a YAML fixture.
package mocklookup

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultFixture []byte

// Address is one canned lookup result.
type Address struct {
	ID       string   `yaml:"id" json:"id"`
	Street   string   `yaml:"street" json:"street,omitempty"`
	City     string   `yaml:"city" json:"city,omitempty"`
	PostCode string   `yaml:"postcode" json:"postcode,omitempty"`
	Lat      *float64 `yaml:"lat" json:"lat,omitempty"`
	Lon      *float64 `yaml:"lon" json:"lon,omitempty"`
}

// Entry answers queries for PostCode. An empty StreetNumber matches every
// street number.
type Entry struct {
	PostCode     string    `yaml:"postcode"`
	StreetNumber string    `yaml:"streetnumber,omitempty"`
	Addresses    []Address `yaml:"addresses"`
}

// Fixture is the full set of canned answers.
//
// Example (YAML):
//
//	entries:
//	  - postcode: "1345"
//	    streetnumber: "350"
//	    addresses:
//	      - id: A1
//	        street: Main St
type Fixture struct {
	Entries []Entry `yaml:"entries"`
}

// DefaultFixture returns the built-in fixture.
func DefaultFixture() (Fixture, error) {
	return ParseFixture(defaultFixture)
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(b)
}

// ParseFixture decodes YAML and checks that every address has an id.
func ParseFixture(b []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture YAML: %w", err)
	}
	for i, e := range f.Entries {
		if strings.TrimSpace(e.PostCode) == "" {
			return Fixture{}, fmt.Errorf("fixture entry %d: postcode is required", i)
		}
		for j, a := range e.Addresses {
			if strings.TrimSpace(a.ID) == "" {
				return Fixture{}, fmt.Errorf("fixture entry %d address %d: id is required", i, j)
			}
		}
	}
	return f, nil
}

// Match returns the addresses of every entry for postCode whose street
// number is empty or equal to streetNumber, in fixture order.
func (f Fixture) Match(postCode, streetNumber string) []Address {
	postCode = strings.TrimSpace(postCode)
	streetNumber = strings.TrimSpace(streetNumber)

	out := []Address{}
	for _, e := range f.Entries {
		if !strings.EqualFold(strings.TrimSpace(e.PostCode), postCode) {
			continue
		}
		if e.StreetNumber != "" && e.StreetNumber != streetNumber {
			continue
		}
		out = append(out, e.Addresses...)
	}
	return out
}
