package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/livetemplate/tinkerdeck/internal/journal"
)

var journalOpts struct {
	dir    string
	limit  int
	visits bool
}

var journalCmd = &cobra.Command{
	Use:   "journal [deck]",
	Short: "Show recorded deck navigation",
	Long: `Journal prints the navigation history recorded while presenting. With a
deck name (its path relative to the served directory, e.g. talks/intro.md) only
that deck is shown; --visits prints how often each of its slides was opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deck := ""
		if len(args) > 0 {
			deck = args[0]
		}
		if journalOpts.visits && deck == "" {
			return fmt.Errorf("--visits requires a deck")
		}

		cfg, err := loadConfig(journalOpts.dir)
		if err != nil {
			return err
		}
		store, err := openJournal(cfg, journalOpts.dir)
		if err != nil {
			return err
		}
		defer store.Close()

		return runJournal(cmd.Context(), store, deck, journalOpts.limit, journalOpts.visits, cmd.OutOrStdout())
	},
}

func init() {
	journalCmd.Flags().StringVarP(&journalOpts.dir, "dir", "d", ".", "deck directory whose config and journal are used")
	journalCmd.Flags().IntVarP(&journalOpts.limit, "limit", "n", 20, "number of entries to show")
	journalCmd.Flags().BoolVar(&journalOpts.visits, "visits", false, "show per-slide visit counts")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(ctx context.Context, store journal.Store, deck string, limit int, visits bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if visits {
		vs, err := store.Visits(ctx, deck)
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			fmt.Fprintf(out, "No visits recorded for %s\n", deck)
			return nil
		}
		printVisitTable(out, vs)
		return nil
	}

	entries, err := store.Recent(ctx, deck, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No journal entries")
		return nil
	}
	printEntryTable(out, entries)
	return nil
}

func printEntryTable(w io.Writer, entries []journal.Entry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Deck", "Slide", "Step", "Presenter", "Session"})
	for _, e := range entries {
		step := "-"
		if e.Step >= 0 {
			step = strconv.Itoa(e.Step + 1)
		}
		session := e.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		table.Append([]string{
			e.At.Local().Format(time.DateTime),
			e.Deck,
			strconv.Itoa(e.Slide + 1),
			step,
			e.Presenter,
			session,
		})
	}
	table.Render()
}

func printVisitTable(w io.Writer, visits []journal.Visit) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Slide", "Visits"})
	for _, v := range visits {
		table.Append([]string{strconv.Itoa(v.Slide + 1), strconv.Itoa(v.Count)})
	}
	table.Render()
}
