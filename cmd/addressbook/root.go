package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"addressbook/internal/address/models"
	"addressbook/internal/addressbook/store"
	"addressbook/internal/capture"
	"addressbook/internal/lookup"
	"addressbook/internal/platform/config"
	"addressbook/internal/platform/logger"
)

type rootOptions struct {
	lookupURL string
	timeout   time.Duration
	jsonOut   bool
	verbose   bool

	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	cfg := config.FromEnv()
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "addressbook",
		Short:         "Search addresses by postcode and save them with a name",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			opts.logger = logger.NewWithWriter(cmd.ErrOrStderr(), config.LogConfig{Level: level, Format: "text"})
		},
	}

	root.PersistentFlags().StringVar(&opts.lookupURL, "lookup-url", cfg.Lookup.BaseURL, "base URL of the address lookup API")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", cfg.Lookup.Timeout, "timeout for one address lookup")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of a table")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(lookupCmd(opts), captureCmd(opts))
	return root
}

// newWorkflow builds a single-use workflow backed by an in-memory book.
func (o *rootOptions) newWorkflow() *capture.Workflow {
	client := lookup.NewClient(o.lookupURL,
		lookup.WithTimeout(o.timeout),
		lookup.WithLogger(o.logger),
	)
	return capture.New(client, store.NewInMemory(), capture.WithLogger(o.logger))
}

// capturedError reports a message the workflow surfaced to the user.
type capturedError struct {
	message string
}

func (e *capturedError) Error() string {
	return e.message
}

func (o *rootOptions) printCandidates(w io.Writer, candidates []models.Candidate) error {
	if o.jsonOut {
		return writeJSON(w, candidates)
	}
	if len(candidates) == 0 {
		_, err := fmt.Fprintln(w, "No addresses found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOUSE\tSTREET\tCITY\tPOSTCODE")
	for _, c := range candidates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.HouseNumber, c.Street, c.City, c.PostCode)
	}
	return tw.Flush()
}

func (o *rootOptions) printEntries(w io.Writer, entries []models.Entry) error {
	if o.jsonOut {
		return writeJSON(w, entries)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tID")
	for _, e := range entries {
		address := strings.TrimSpace(strings.Join([]string{e.HouseNumber, e.Street}, " "))
		if e.City != "" || e.PostCode != "" {
			address += ", " + strings.TrimSpace(e.City+" "+e.PostCode)
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", e.FirstName, e.LastName, address, e.ID)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
