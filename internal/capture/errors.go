package capture

import (
	dErrors "addressbook/pkg/domain-errors"
	"addressbook/pkg/platform/sentinel"
)

// Messages shown when a commit is rejected. Checked in this order.
const (
	MsgNameRequired      = "First name and last name fields mandatory!"
	MsgNoSelection       = "No address selected, try to select an address or find one if you haven't"
	MsgSelectionNotFound = "Selected address not found"
	MsgSaveFailed        = "Failed to save address"
)

// ValidationError is a commit rejected because of user input.
type ValidationError struct {
	Message string
	Reason  string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	errNameRequired      = &ValidationError{Message: MsgNameRequired, Reason: "name_required"}
	errNoSelection       = &ValidationError{Message: MsgNoSelection, Reason: "no_selection"}
	errSelectionNotFound = &ValidationError{Message: MsgSelectionNotFound, Reason: "selection_not_found"}
)

var (
	// ErrSearchInFlight rejects a search submitted while another is outstanding.
	ErrSearchInFlight = dErrors.Wrap(sentinel.ErrConflict, dErrors.CodeConflict, "address search already in progress")

	// ErrUnknownCandidate rejects selecting an id that is not in the current results.
	ErrUnknownCandidate = dErrors.New(dErrors.CodeValidation, "unknown candidate")
)
