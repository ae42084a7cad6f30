package capture

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"addressbook/internal/address/models"
	"addressbook/internal/addressbook/store"
	bookmocks "addressbook/internal/addressbook/store/mocks"
	"addressbook/internal/form"
	"addressbook/internal/lookup"
	"addressbook/internal/lookup/mocks"
	"addressbook/internal/platform/metrics"
	dErrors "addressbook/pkg/domain-errors"
	"addressbook/pkg/platform/sentinel"
)

type WorkflowSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	searcher *mocks.MockSearcher
	book     *store.InMemory
	metrics  *metrics.Metrics
	wf       *Workflow
	ctx      context.Context
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.searcher = mocks.NewMockSearcher(s.ctrl)
	s.book = store.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.wf = New(s.searcher, s.book, WithMetrics(s.metrics))
	s.ctx = context.Background()
}

func (s *WorkflowSuite) setFields(kv ...string) {
	s.Require().Zero(len(kv)%2, "setFields takes name/value pairs")
	for i := 0; i < len(kv); i += 2 {
		s.Require().NoError(s.wf.SetField(kv[i], kv[i+1]))
	}
}

// searchReturning runs one search whose lookup returns candidates.
func (s *WorkflowSuite) searchReturning(candidates ...models.Candidate) {
	s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(candidates, nil)
	s.Require().NoError(s.wf.SubmitSearch(s.ctx))
}

func (s *WorkflowSuite) bookEntries() []models.Entry {
	entries, err := s.wf.AddressBook(s.ctx)
	s.Require().NoError(err)
	return entries
}

func (s *WorkflowSuite) TestEndToEnd() {
	s.setFields(FieldPostCode, "1345", FieldHouseNumber, "350")
	s.searcher.EXPECT().Search(gomock.Any(), "1345", "350").
		Return([]models.Candidate{{ID: "A1", Street: "Main St"}}, nil)

	s.Require().NoError(s.wf.SubmitSearch(s.ctx))
	snap := s.wf.Snapshot()
	s.Equal(StateResultsShown, snap.State)
	s.Equal([]models.Candidate{{ID: "A1", Street: "Main St", HouseNumber: "350"}}, snap.Candidates)
	s.False(snap.Loading)

	s.Require().NoError(s.wf.SelectCandidate("A1"))
	snap = s.wf.Snapshot()
	s.Equal("A1", snap.Fields[FieldSelectedAddress])
	s.Equal("A1", snap.SelectedID)
	s.Equal(StateSelected, snap.State)

	s.setFields(FieldFirstName, "Jane", FieldLastName, "Doe")
	s.Require().NoError(s.wf.SubmitPerson(s.ctx))

	s.Equal([]models.Entry{{
		Candidate:    models.Candidate{ID: "A1", Street: "Main St", HouseNumber: "350"},
		PersonalInfo: models.PersonalInfo{FirstName: "Jane", LastName: "Doe"},
	}}, s.bookEntries())

	snap = s.wf.Snapshot()
	s.Equal(form.FieldSet(DefaultFields()), snap.Fields)
	s.Empty(snap.Candidates)
	s.Equal(StateIdle, snap.State)
	s.Empty(snap.ErrorMessage)
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.Commits))
}

func (s *WorkflowSuite) TestSubmitSearch() {
	s.Run("passes empty values through without validation", func() {
		s.searcher.EXPECT().Search(gomock.Any(), "", "").Return([]models.Candidate{}, nil)
		s.Require().NoError(s.wf.SubmitSearch(s.ctx))

		snap := s.wf.Snapshot()
		s.Equal(StateResultsShown, snap.State)
		s.Empty(snap.Candidates)
		s.Empty(snap.ErrorMessage)
	})

	s.Run("lookup error message is surfaced verbatim", func() {
		s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, lookup.NewError(lookup.ErrorBadStatus, "Failed to fetch addresses", nil))
		s.Require().NoError(s.wf.SubmitSearch(s.ctx))

		snap := s.wf.Snapshot()
		s.Equal("Failed to fetch addresses", snap.ErrorMessage)
		s.Empty(snap.Candidates)
		s.False(snap.Loading)
		s.Equal(StateIdle, snap.State)
	})

	s.Run("foreign errors surface their text", func() {
		s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("dns failure"))
		s.Require().NoError(s.wf.SubmitSearch(s.ctx))
		s.Equal("dns failure", s.wf.Snapshot().ErrorMessage)
	})

	s.Run("new search clears previous results and error", func() {
		s.setFields(FieldHouseNumber, "12")
		s.searchReturning(models.Candidate{ID: "B2"})

		snap := s.wf.Snapshot()
		s.Empty(snap.ErrorMessage)
		s.Equal([]models.Candidate{{ID: "B2", HouseNumber: "12"}}, snap.Candidates)

		s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, lookup.NewError(lookup.ErrorTimeout, lookup.MsgTimeout, nil))
		s.Require().NoError(s.wf.SubmitSearch(s.ctx))
		snap = s.wf.Snapshot()
		s.Empty(snap.Candidates)
		s.Equal(lookup.MsgTimeout, snap.ErrorMessage)
	})

	s.Run("house number stamp overrides any value from the lookup", func() {
		s.setFields(FieldHouseNumber, "350")
		s.searchReturning(models.Candidate{ID: "A1", HouseNumber: "999"}, models.Candidate{ID: "A2"})

		for _, c := range s.wf.Snapshot().Candidates {
			s.Equal("350", c.HouseNumber)
		}
	})

	s.Equal(3.0, promtestutil.ToFloat64(s.metrics.Searches.WithLabelValues("success")))
	s.Equal(3.0, promtestutil.ToFloat64(s.metrics.Searches.WithLabelValues("failure")))
}

func (s *WorkflowSuite) TestLoadingAlwaysCleared() {
	s.Run("cleared after cancellation", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _, _ string) ([]models.Candidate, error) {
				return nil, ctx.Err()
			})

		s.Require().NoError(s.wf.SubmitSearch(ctx))
		snap := s.wf.Snapshot()
		s.False(snap.Loading)
		s.Equal(lookup.MsgCanceled, snap.ErrorMessage)
	})

	s.Run("cleared when the searcher panics", func() {
		s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, string, string) ([]models.Candidate, error) {
				panic("lookup exploded")
			})

		s.Panics(func() { _ = s.wf.SubmitSearch(s.ctx) })
		snap := s.wf.Snapshot()
		s.False(snap.Loading)
		s.Equal(lookup.MsgFetchFailed, snap.ErrorMessage)

		s.searchReturning(models.Candidate{ID: "A1"})
		s.Len(s.wf.Snapshot().Candidates, 1)
	})
}

func (s *WorkflowSuite) TestSelectCandidate() {
	s.searchReturning(models.Candidate{ID: "A1"}, models.Candidate{ID: "B2"})

	s.Run("unknown id is rejected and changes nothing", func() {
		before := s.wf.Snapshot()
		err := s.wf.SelectCandidate("Z9")
		s.Require().Error(err)
		s.ErrorIs(err, ErrUnknownCandidate)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(before, s.wf.Snapshot())
	})

	s.Run("known id is selected and clears a pending error", func() {
		s.setFields(FieldFirstName, "")
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))
		s.Equal(MsgNameRequired, s.wf.Snapshot().ErrorMessage)

		s.Require().NoError(s.wf.SelectCandidate("B2"))
		snap := s.wf.Snapshot()
		s.Equal("B2", snap.SelectedID)
		s.Equal(StateSelected, snap.State)
		s.Empty(snap.ErrorMessage)
	})

	s.Run("re-selection replaces the previous id", func() {
		s.Require().NoError(s.wf.SelectCandidate("A1"))
		s.Equal("A1", s.wf.Snapshot().SelectedID)
	})

	s.Run("failed commit keeps the selection", func() {
		s.setFields(FieldFirstName, "", FieldLastName, "Doe")
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))

		snap := s.wf.Snapshot()
		s.Equal(MsgNameRequired, snap.ErrorMessage)
		s.Equal(StateSelected, snap.State)
		s.Equal("A1", snap.SelectedID)
		s.Len(snap.Candidates, 2)
		s.Empty(s.bookEntries())
	})
}

func (s *WorkflowSuite) TestSubmitPersonValidation() {
	s.Run("empty first name is rejected before anything else", func() {
		s.setFields(FieldLastName, "Doe")
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))

		s.Equal(MsgNameRequired, s.wf.Snapshot().ErrorMessage)
		s.Empty(s.bookEntries())
	})

	s.Run("whitespace-only names count as empty", func() {
		s.setFields(FieldFirstName, "   ", FieldLastName, "\t")
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))
		s.Equal(MsgNameRequired, s.wf.Snapshot().ErrorMessage)
	})

	s.Run("valid names without any results", func() {
		s.setFields(FieldFirstName, "Jane", FieldLastName, "Doe")
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))
		s.Equal(MsgNoSelection, s.wf.Snapshot().ErrorMessage)
	})

	s.Run("valid names with results but no selection", func() {
		s.searchReturning(models.Candidate{ID: "A1"})
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))

		snap := s.wf.Snapshot()
		s.Equal(MsgNoSelection, snap.ErrorMessage)
		s.Len(snap.Candidates, 1)
		s.Empty(s.bookEntries())
	})

	s.Run("stale selection after a re-search", func() {
		s.Require().NoError(s.wf.SelectCandidate("A1"))
		s.searchReturning(models.Candidate{ID: "B2"})

		snap := s.wf.Snapshot()
		s.Equal("A1", snap.SelectedID)

		s.Require().NoError(s.wf.SubmitPerson(s.ctx))
		s.Equal(MsgSelectionNotFound, s.wf.Snapshot().ErrorMessage)
		s.Empty(s.bookEntries())
	})

	s.Equal(2.0, promtestutil.ToFloat64(s.metrics.ValidationFailures.WithLabelValues("name_required")))
	s.Equal(2.0, promtestutil.ToFloat64(s.metrics.ValidationFailures.WithLabelValues("no_selection")))
	s.Equal(1.0, promtestutil.ToFloat64(s.metrics.ValidationFailures.WithLabelValues("selection_not_found")))
}

// TestValidationOrder checks that fixing the name reveals the selection error.
func (s *WorkflowSuite) TestValidationOrder() {
	s.searchReturning(models.Candidate{ID: "A1"})

	s.Require().NoError(s.wf.SubmitPerson(s.ctx))
	s.Equal(MsgNameRequired, s.wf.Snapshot().ErrorMessage)

	s.setFields(FieldFirstName, "Jane", FieldLastName, "Doe")
	s.Require().NoError(s.wf.SubmitPerson(s.ctx))
	s.Equal(MsgNoSelection, s.wf.Snapshot().ErrorMessage)

	s.Require().NoError(s.wf.SelectCandidate("A1"))
	s.Require().NoError(s.wf.SubmitPerson(s.ctx))
	s.Empty(s.wf.Snapshot().ErrorMessage)
	s.Len(s.bookEntries(), 1)
}

func (s *WorkflowSuite) TestCommit() {
	s.Run("stores trimmed names", func() {
		s.setFields(FieldHouseNumber, "350")
		s.searchReturning(models.Candidate{ID: "A1", Street: "Main St"})
		s.Require().NoError(s.wf.SelectCandidate("A1"))
		s.setFields(FieldFirstName, "  Jane ", FieldLastName, "Doe\n")
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))

		entries := s.bookEntries()
		s.Require().Len(entries, 1)
		s.Equal(models.PersonalInfo{FirstName: "Jane", LastName: "Doe"}, entries[0].PersonalInfo)
	})

	s.Run("duplicate entries are kept", func() {
		s.setFields(FieldHouseNumber, "350")
		s.searchReturning(models.Candidate{ID: "A1", Street: "Main St"})
		s.Require().NoError(s.wf.SelectCandidate("A1"))
		s.setFields(FieldFirstName, "Jane", FieldLastName, "Doe")
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))

		entries := s.bookEntries()
		s.Require().Len(entries, 2)
		s.Equal(entries[0], entries[1])
	})
}

func (s *WorkflowSuite) TestCommitStoreFailure() {
	book := bookmocks.NewMockBook(s.ctrl)
	wf := New(s.searcher, book)
	s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return([]models.Candidate{{ID: "A1"}}, nil)
	s.Require().NoError(wf.SubmitSearch(s.ctx))
	s.Require().NoError(wf.SelectCandidate("A1"))
	s.Require().NoError(wf.SetField(FieldFirstName, "Jane"))
	s.Require().NoError(wf.SetField(FieldLastName, "Doe"))

	storeErr := errors.New("disk full")
	book.EXPECT().Append(gomock.Any(), gomock.Any()).Return(storeErr)

	err := wf.SubmitPerson(s.ctx)
	s.Require().ErrorIs(err, storeErr)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	snap := wf.Snapshot()
	s.Equal(MsgSaveFailed, snap.ErrorMessage)
	s.Equal("Jane", snap.Fields[FieldFirstName])
	s.Len(snap.Candidates, 1)
}

func (s *WorkflowSuite) TestClearAll() {
	defaults := form.FieldSet(DefaultFields())
	assertCleared := func() {
		snap := s.wf.Snapshot()
		s.Equal(StateIdle, snap.State)
		s.Equal(defaults, snap.Fields)
		s.Empty(snap.Candidates)
		s.Empty(snap.ErrorMessage)
		s.False(snap.Loading)
	}

	s.Run("from idle", func() {
		s.wf.ClearAll()
		assertCleared()
	})

	s.Run("from results with typed fields", func() {
		s.setFields(FieldPostCode, "1345", FieldHouseNumber, "350")
		s.searchReturning(models.Candidate{ID: "A1"})
		s.wf.ClearAll()
		assertCleared()
	})

	s.Run("from selected with an error", func() {
		s.searchReturning(models.Candidate{ID: "A1"})
		s.Require().NoError(s.wf.SelectCandidate("A1"))
		s.Require().NoError(s.wf.SubmitPerson(s.ctx))
		s.Equal(MsgNameRequired, s.wf.Snapshot().ErrorMessage)

		s.wf.ClearAll()
		assertCleared()
	})

	s.Run("from a lookup error", func() {
		s.searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, lookup.NewError(lookup.ErrorBadStatus, lookup.MsgFetchFailed, nil))
		s.Require().NoError(s.wf.SubmitSearch(s.ctx))
		s.wf.ClearAll()
		assertCleared()
	})

	s.Run("twice in a row equals once", func() {
		s.setFields(FieldPostCode, "1345")
		s.wf.ClearAll()
		once := s.wf.Snapshot()
		s.wf.ClearAll()
		s.Equal(once, s.wf.Snapshot())
	})
}

func (s *WorkflowSuite) TestSetField() {
	err := s.wf.SetField("zipCode", "1345")
	s.Require().Error(err)
	s.ErrorIs(err, form.ErrUnknownField)
	s.NotContains(s.wf.Snapshot().Fields, "zipCode")
}

func (s *WorkflowSuite) TestSnapshotIsolation() {
	s.searchReturning(models.Candidate{ID: "A1", Extra: map[string]json.RawMessage{"k": json.RawMessage(`"v"`)}})

	snap := s.wf.Snapshot()
	snap.Fields[FieldPostCode] = "mutated"
	snap.Candidates[0].ID = "mutated"
	snap.Candidates[0].Extra["k"][1] = 'X'

	again := s.wf.Snapshot()
	s.Equal("", again.Fields[FieldPostCode])
	s.Equal("A1", again.Candidates[0].ID)
	s.JSONEq(`"v"`, string(again.Candidates[0].Extra["k"]))
}

func (s *WorkflowSuite) TestErrSearchInFlightIsConflict() {
	s.ErrorIs(ErrSearchInFlight, sentinel.ErrConflict)
	s.True(dErrors.HasCode(ErrSearchInFlight, dErrors.CodeConflict))
}
