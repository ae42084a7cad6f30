package main

import (
	"github.com/spf13/cobra"

	"addressbook/internal/capture"
)

func lookupCmd(opts *rootOptions) *cobra.Command {
	var postCode, houseNumber string

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "List candidate addresses for a postcode and house number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wf := opts.newWorkflow()
			if err := setFields(wf, capture.FieldPostCode, postCode, capture.FieldHouseNumber, houseNumber); err != nil {
				return err
			}
			if err := wf.SubmitSearch(cmd.Context()); err != nil {
				return err
			}
			snap := wf.Snapshot()
			if snap.ErrorMessage != "" {
				return &capturedError{message: snap.ErrorMessage}
			}
			return opts.printCandidates(cmd.OutOrStdout(), snap.Candidates)
		},
	}

	cmd.Flags().StringVar(&postCode, "postcode", "", "postcode to search")
	cmd.Flags().StringVar(&houseNumber, "house", "", "house number to search")
	return cmd
}

// setFields applies name/value pairs in order.
func setFields(wf *capture.Workflow, kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if err := wf.SetField(kv[i], kv[i+1]); err != nil {
			return err
		}
	}
	return nil
}
