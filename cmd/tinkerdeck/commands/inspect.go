package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/livetemplate/tinkerdeck"
	"github.com/livetemplate/tinkerdeck/internal/document"
	"github.com/livetemplate/tinkerdeck/internal/server"
)

var inspectVerbose bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [path]",
	Short: "Show the slides, steps and frames of decks",
	Long: `Inspect loads every deck under path (default: the current directory), or
the single deck file path names, and prints its slide, step and iframe counts.
Decks that fail to load are reported and make the command fail.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		return runInspect(path, inspectVerbose, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	inspectCmd.Flags().BoolVarP(&inspectVerbose, "verbose", "v", false, "show one row per slide")
	rootCmd.AddCommand(inspectCmd)
}

// slideSummary is what inspect reports for one slide.
type slideSummary struct {
	Index  int
	ID     string
	Steps  int
	Frames []string
}

// deckSummary is what inspect reports for one deck.
type deckSummary struct {
	Name   string
	Title  string
	Slides []slideSummary
}

func (d deckSummary) stepCounts() string {
	counts := make([]string, len(d.Slides))
	for i, s := range d.Slides {
		counts[i] = strconv.Itoa(s.Steps)
	}
	return strings.Join(counts, " ")
}

func (d deckSummary) frameCount() int {
	n := 0
	for _, s := range d.Slides {
		n += len(s.Frames)
	}
	return n
}

func summarize(d *document.Deck, stepSelector string) deckSummary {
	sum := deckSummary{Name: d.Name, Title: d.Title}
	for i, slide := range d.Slides(d.Doc) {
		id, _ := slide.Attr("id")
		s := slideSummary{
			Index: i + 1,
			ID:    id,
			Steps: len(tinkerdeck.ExtractSteps(slide, stepSelector)),
		}
		for _, f := range tinkerdeck.FramesOf(slide) {
			src := f.Source()
			if src == "" {
				src = f.StoredSource()
			}
			s.Frames = append(s.Frames, src)
		}
		sum.Slides = append(sum.Slides, s)
	}
	return sum
}

func runInspect(path string, verbose bool, out, errOut io.Writer) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if err != nil {
		return err
	}

	dir := path
	if !info.IsDir() {
		dir = filepath.Dir(path)
	}
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	opts := document.Options{
		SlideSelector:    cfg.GetSlideSelector(),
		ProgressSelector: cfg.GetProgressSelector(),
	}

	var (
		decks    []deckSummary
		failures []error
	)
	if info.IsDir() {
		srv := server.New(path, cfg)
		if err := srv.Discover(); err != nil {
			return fmt.Errorf("failed to discover decks: %w", err)
		}
		for _, route := range srv.Routes() {
			decks = append(decks, summarize(route.Deck, cfg.GetStepSelector()))
		}
		for _, f := range srv.Failures() {
			failures = append(failures, f.Err)
		}
	} else {
		if !document.IsDeckFile(path) {
			return fmt.Errorf("not a deck file: %s", path)
		}
		d, err := document.LoadFile(path, opts)
		if err != nil {
			failures = append(failures, err)
		} else {
			decks = append(decks, summarize(d, cfg.GetStepSelector()))
		}
	}

	if len(decks) == 0 && len(failures) == 0 {
		fmt.Fprintf(out, "No decks found in %s\n", path)
		return nil
	}

	if len(decks) > 0 {
		printDeckTable(out, decks)
	}
	if verbose {
		for _, d := range decks {
			fmt.Fprintf(out, "\n%s\n", d.Name)
			printSlideTable(out, d)
		}
	}

	for _, err := range failures {
		var le *tinkerdeck.LoadError
		if errors.As(err, &le) {
			fmt.Fprintf(errOut, "\n%s", le.Format())
			continue
		}
		fmt.Fprintf(errOut, "\n❌ %v\n", err)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d deck(s) failed to load", len(failures))
	}
	return nil
}

func printDeckTable(w io.Writer, decks []deckSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Deck", "Title", "Slides", "Steps", "Frames"})
	for _, d := range decks {
		table.Append([]string{
			d.Name,
			d.Title,
			strconv.Itoa(len(d.Slides)),
			d.stepCounts(),
			strconv.Itoa(d.frameCount()),
		})
	}
	table.Render()
}

func printSlideTable(w io.Writer, d deckSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Slide", "ID", "Steps", "Frames"})
	for _, s := range d.Slides {
		table.Append([]string{
			strconv.Itoa(s.Index),
			s.ID,
			strconv.Itoa(s.Steps),
			strings.Join(s.Frames, ", "),
		})
	}
	table.Render()
}
