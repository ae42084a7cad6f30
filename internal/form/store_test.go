package form

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "addressbook/pkg/domain-errors"
)

type StoreSuite struct {
	suite.Suite
	defaults FieldSet
	store    *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.defaults = FieldSet{
		"postCode":        "",
		"houseNumber":     "",
		"firstName":       "",
		"lastName":        "",
		"selectedAddress": "",
	}
	s.store = New(s.defaults)
}

func (s *StoreSuite) TestSet() {
	s.Run("overwrites a known field", func() {
		s.Require().NoError(s.store.Set("postCode", "1345"))
		s.Equal("1345", s.store.Get("postCode"))
		s.Equal("1345", s.store.All()["postCode"])
	})

	s.Run("rejects an unknown field", func() {
		before := s.store.All()
		err := s.store.Set("zipCode", "1345")
		s.Require().Error(err)
		s.ErrorIs(err, ErrUnknownField)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), `"zipCode"`)
		s.Equal(before, s.store.All())
	})

	s.Run("empty value is allowed", func() {
		s.Require().NoError(s.store.Set("firstName", "Jane"))
		s.Require().NoError(s.store.Set("firstName", ""))
		s.Equal("", s.store.Get("firstName"))
	})
}

func (s *StoreSuite) TestSnapshotIsolation() {
	s.Run("mutating All result does not reach the store", func() {
		snap := s.store.All()
		snap["postCode"] = "9999"
		snap["extra"] = "x"
		s.Equal("", s.store.Get("postCode"))
		s.NotContains(s.store.All(), "extra")
	})

	s.Run("mutating the defaults map after New has no effect", func() {
		defaults := FieldSet{"a": "1"}
		st := New(defaults)
		defaults["a"] = "2"
		defaults["b"] = "3"
		st.Reset()
		s.Equal(FieldSet{"a": "1"}, st.All())
	})
}

// TestReset covers the property that reset after any mutation restores the
// construction-time defaults field by field.
func (s *StoreSuite) TestReset() {
	s.Run("restores empty defaults", func() {
		s.Require().NoError(s.store.Set("postCode", "1345"))
		s.Require().NoError(s.store.Set("houseNumber", "350"))
		s.Require().NoError(s.store.Set("firstName", "Jane"))
		s.store.Reset()
		s.Equal(s.defaults, s.store.All())
	})

	s.Run("restores non-empty original defaults after several cycles", func() {
		st := New(FieldSet{"city": "Amsterdam", "street": ""})
		for _, v := range []string{"Utrecht", "Delft", ""} {
			s.Require().NoError(st.Set("city", v))
			s.Require().NoError(st.Set("street", v+" st"))
			st.Reset()
		}
		s.Require().NoError(st.Set("city", "Leiden"))
		st.Reset()
		s.Equal(FieldSet{"city": "Amsterdam", "street": ""}, st.All())
	})

	s.Run("reset keeps the schema closed", func() {
		s.store.Reset()
		s.Error(s.store.Set("unknown", "x"))
		s.Equal(s.defaults, s.store.All())
	})
}

func (s *StoreSuite) TestNilDefaults() {
	st := New(nil)
	s.Empty(st.All())
	s.Error(st.Set("anything", "x"))
	s.Equal("", st.Get("anything"))
}
