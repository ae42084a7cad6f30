// Package capture implements the address capture workflow: search for
// candidate addresses, select one, attach a person and commit the result to
// the address book.
//
// A Workflow is owned by one session. Every action captures user-facing
// failures into a single error slot exposed by Snapshot instead of returning
// them; returned errors are reserved for misuse (unknown field or candidate,
// concurrent search) and infrastructure failures.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"addressbook/internal/address/models"
	"addressbook/internal/addressbook/store"
	"addressbook/internal/form"
	"addressbook/internal/lookup"
	"addressbook/internal/platform/metrics"
	dErrors "addressbook/pkg/domain-errors"
)

// Workflow is the capture state machine.
type Workflow struct {
	searcher lookup.Searcher
	book     store.Book
	logger   *slog.Logger
	metrics  *metrics.Metrics

	fields *form.Store

	mu         sync.Mutex
	state      State
	candidates []models.Candidate
	errMsg     string
	loading    bool
	// generation identifies the latest search; responses carrying an older
	// generation are dropped.
	generation uint64
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// New constructs an idle Workflow with the default capture form.
func New(searcher lookup.Searcher, book store.Book, opts ...Option) *Workflow {
	w := &Workflow{
		searcher: searcher,
		book:     book,
		logger:   slog.New(slog.DiscardHandler),
		fields:   form.New(DefaultFields()),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetField records typed input. Unknown names are rejected.
func (w *Workflow) SetField(name, value string) error {
	if err := w.fields.Set(name, value); err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	return nil
}

// SubmitSearch looks up candidates for the current postCode and houseNumber.
// It blocks until the lookup returns. Lookup failures are captured into the
// error message; the returned error is ErrSearchInFlight when another search
// is still outstanding, and nil otherwise.
func (w *Workflow) SubmitSearch(ctx context.Context) error {
	w.mu.Lock()
	if w.loading {
		w.mu.Unlock()
		w.metrics.IncSearch("rejected")
		return ErrSearchInFlight
	}
	w.generation++
	gen := w.generation
	w.candidates = nil
	w.errMsg = ""
	w.loading = true
	w.state = StateSearching
	postCode := w.fields.Get(FieldPostCode)
	houseNumber := w.fields.Get(FieldHouseNumber)
	w.mu.Unlock()

	finished := false
	defer func() {
		// Searcher panicked: leave the workflow usable, then keep unwinding.
		if !finished {
			w.finishSearch(ctx, gen, houseNumber, nil, lookup.NewError(lookup.ErrorTransport, lookup.MsgFetchFailed, nil))
		}
	}()

	candidates, err := w.searcher.Search(ctx, postCode, houseNumber)
	finished = true
	w.finishSearch(ctx, gen, houseNumber, candidates, err)
	return nil
}

func (w *Workflow) finishSearch(ctx context.Context, gen uint64, houseNumber string, candidates []models.Candidate, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.generation {
		w.metrics.IncSearch("stale")
		w.logger.DebugContext(ctx, "discarding stale address search response", "generation", gen)
		return
	}

	w.loading = false
	if err != nil {
		w.candidates = nil
		w.errMsg = lookup.UserMessage(err)
		w.state = StateIdle
		w.metrics.IncSearch("failure")
		w.logger.WarnContext(ctx, "address search failed",
			"category", string(lookup.CategoryOf(err)),
			"error", err.Error(),
		)
		return
	}

	stamped := make([]models.Candidate, len(candidates))
	for i, c := range candidates {
		stamped[i] = c.WithHouseNumber(houseNumber)
	}
	w.candidates = stamped
	w.errMsg = ""
	w.state = StateResultsShown
	w.metrics.IncSearch("success")
	w.logger.InfoContext(ctx, "address search completed", "candidates", len(stamped))
}

// SelectCandidate marks id as the chosen address. Ids outside the current
// results are rejected with ErrUnknownCandidate and nothing changes.
func (w *Workflow) SelectCandidate(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := models.FindCandidate(w.candidates, id); !ok {
		return dErrors.Wrap(ErrUnknownCandidate, dErrors.CodeValidation, fmt.Sprintf("unknown candidate %q", id))
	}
	if err := w.fields.Set(FieldSelectedAddress, id); err != nil {
		return err
	}
	w.errMsg = ""
	w.state = StateSelected
	return nil
}

// SubmitPerson commits the selected candidate with the entered names. Checks
// run in a fixed order: names, then a selection, then that the selection is
// still among the results. The first failing check sets the error message
// and nothing else changes. On success the entry is appended to the book and
// the workflow returns to idle with an empty form.
func (w *Workflow) SubmitPerson(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	fields := w.fields.All()
	person := models.PersonalInfo{
		FirstName: fields[FieldFirstName],
		LastName:  fields[FieldLastName],
	}

	candidate, verr := w.validateCommit(person, fields[FieldSelectedAddress])
	if verr != nil {
		w.errMsg = verr.Message
		w.metrics.IncValidationFailure(verr.Reason)
		w.logger.InfoContext(ctx, "address commit rejected", "reason", verr.Reason)
		return nil
	}

	entry := models.NewEntry(candidate, person.Trimmed())
	if err := w.book.Append(ctx, entry); err != nil {
		w.errMsg = MsgSaveFailed
		w.logger.ErrorContext(ctx, "failed to append address book entry", "error", err.Error())
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save address")
	}

	w.fields.Reset()
	w.candidates = nil
	w.errMsg = ""
	w.state = StateIdle
	w.metrics.IncCommit()
	w.logger.InfoContext(ctx, "address committed", "address_id", candidate.ID)
	return nil
}

// validateCommit must be called with w.mu held.
func (w *Workflow) validateCommit(person models.PersonalInfo, selectedID string) (models.Candidate, *ValidationError) {
	if !person.Complete() {
		return models.Candidate{}, errNameRequired
	}
	if selectedID == "" || len(w.candidates) == 0 {
		return models.Candidate{}, errNoSelection
	}
	candidate, ok := models.FindCandidate(w.candidates, selectedID)
	if !ok {
		return models.Candidate{}, errSelectionNotFound
	}
	return candidate, nil
}

// ClearAll resets the form, drops results and the error message, and
// abandons any outstanding search. Always lands in StateIdle.
func (w *Workflow) ClearAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.fields.Reset()
	w.candidates = nil
	w.errMsg = ""
	w.loading = false
	w.state = StateIdle
	w.generation++
}

// Snapshot returns a copy of the public state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	fields := w.fields.All()
	return Snapshot{
		State:        w.state,
		Fields:       fields,
		Candidates:   models.CloneCandidates(w.candidates),
		SelectedID:   fields[FieldSelectedAddress],
		Loading:      w.loading,
		ErrorMessage: w.errMsg,
	}
}

// AddressBook lists committed entries in commit order.
func (w *Workflow) AddressBook(ctx context.Context) ([]models.Entry, error) {
	entries, err := w.book.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list address book")
	}
	return entries, nil
}
