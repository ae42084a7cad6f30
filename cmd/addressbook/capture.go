package main

import (
	"github.com/spf13/cobra"

	"addressbook/internal/capture"
)

func captureCmd(opts *rootOptions) *cobra.Command {
	var postCode, houseNumber, selectID, firstName, lastName string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Search, select and save an address for a person",
		Long: `Runs the whole capture flow: search the postcode and house number, select
a candidate, attach the first and last name and save the entry. A lone
candidate is selected automatically when --select is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			wf := opts.newWorkflow()

			if err := setFields(wf, capture.FieldPostCode, postCode, capture.FieldHouseNumber, houseNumber); err != nil {
				return err
			}
			if err := wf.SubmitSearch(ctx); err != nil {
				return err
			}
			snap := wf.Snapshot()
			if snap.ErrorMessage != "" {
				return &capturedError{message: snap.ErrorMessage}
			}

			if selectID == "" && len(snap.Candidates) == 1 {
				selectID = snap.Candidates[0].ID
			}
			if selectID != "" {
				if err := wf.SelectCandidate(selectID); err != nil {
					return err
				}
			}

			if err := setFields(wf, capture.FieldFirstName, firstName, capture.FieldLastName, lastName); err != nil {
				return err
			}
			if err := wf.SubmitPerson(ctx); err != nil {
				return err
			}
			if msg := wf.Snapshot().ErrorMessage; msg != "" {
				return &capturedError{message: msg}
			}

			entries, err := wf.AddressBook(ctx)
			if err != nil {
				return err
			}
			return opts.printEntries(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&postCode, "postcode", "", "postcode to search")
	cmd.Flags().StringVar(&houseNumber, "house", "", "house number to search")
	cmd.Flags().StringVar(&selectID, "select", "", "id of the candidate to save")
	cmd.Flags().StringVar(&firstName, "first", "", "first name")
	cmd.Flags().StringVar(&lastName, "last", "", "last name")
	return cmd
}
