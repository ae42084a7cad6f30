package capture

import (
	"addressbook/internal/address/models"
	"addressbook/internal/form"
)

// Field names of the capture form.
const (
	FieldPostCode        = "postCode"
	FieldHouseNumber     = "houseNumber"
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldSelectedAddress = "selectedAddress"
)

// DefaultFields returns the empty capture form.
func DefaultFields() form.FieldSet {
	return form.FieldSet{
		FieldPostCode:        "",
		FieldHouseNumber:     "",
		FieldFirstName:       "",
		FieldLastName:        "",
		FieldSelectedAddress: "",
	}
}

// State is the position of a workflow in the search/select/commit cycle.
// A pending error message is carried next to the state, not as a state.
type State string

const (
	StateIdle         State = "idle"
	StateSearching    State = "searching"
	StateResultsShown State = "results_shown"
	StateSelected     State = "selected"
)

// Snapshot is the read-only view handed to presentation adapters.
type Snapshot struct {
	State        State              `json:"state"`
	Fields       form.FieldSet      `json:"fields"`
	Candidates   []models.Candidate `json:"candidates"`
	SelectedID   string             `json:"selected_id"`
	Loading      bool               `json:"loading"`
	ErrorMessage string             `json:"error_message,omitempty"`
}
