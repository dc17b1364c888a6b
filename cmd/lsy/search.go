package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/filter"
	"github.com/matsen/litsynth/internal/logging"
	"github.com/matsen/litsynth/internal/reference"
	"github.com/matsen/litsynth/internal/search"
	"github.com/matsen/litsynth/internal/storage"
)

var (
	searchLimit int
	searchPDFs  bool

	papersQuery   string
	papersLimit   int
	papersAuthors []string
	papersYear    string
	papersVenue   string
	papersSort    string
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Papers per topic (default: search_limit from config)")
	searchCmd.Flags().BoolVar(&searchPDFs, "pdfs", false, "Download open-access PDFs")
	rootCmd.AddCommand(searchCmd)

	papersCmd.Flags().StringVarP(&papersQuery, "query", "q", "", "Full-text query over titles, abstracts and authors")
	papersCmd.Flags().IntVar(&papersLimit, "limit", 50, "Maximum results for --query")
	papersCmd.Flags().StringArrayVarP(&papersAuthors, "author", "a", nil, "Filter by author (repeatable, AND logic)")
	papersCmd.Flags().StringVar(&papersYear, "year", "", "Filter by year (2024, 2020:2024, 2020:, :2024)")
	papersCmd.Flags().StringVar(&papersVenue, "venue", "", "Filter by venue substring")
	papersCmd.Flags().StringVar(&papersSort, "sort", "", "Order by \"citations\" (most cited first, up to --limit)")
	rootCmd.AddCommand(papersCmd)

	rootCmd.AddCommand(getCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <topic>...",
	Short: "Search papers for one or more topics",
	Long: `Search Semantic Scholar for each topic, falling back to arXiv when it
fails or finds nothing. Topics may be given as separate arguments or as
one comma separated list.

Results replace data/papers.jsonl and data/cleaned_dataset.json.

Examples:
  lsy search "graph neural networks"
  lsy search "protein folding, alphafold" --limit 5 --pdfs`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

// SearchResult is the response of the search command.
type SearchResult struct {
	Topics     []string              `json:"topics"`
	Count      int                   `json:"count"`
	Downloaded int                   `json:"pdfs_downloaded"`
	Papers     []reference.Reference `json:"papers"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	topics := search.NormalizeTopics(args)
	if len(topics) == 0 {
		exitWithError(ExitError, "at least one non-empty topic is required")
	}

	a := mustSetup(logging.FormatText)
	limit := searchLimit
	if limit <= 0 {
		limit = a.cfg.SearchLimit
	}

	ctx, cancel := commandContext()
	defer cancel()

	ds, err := a.searcher().SearchTopics(ctx, topics, limit)
	if err != nil {
		exitWithError(exitCodeFor(err), "searching: %v", err)
	}
	if ds.Total() == 0 {
		exitWithError(ExitDataError, "no papers found for %v", topics)
	}

	downloaded := 0
	if searchPDFs {
		d := a.downloader()
		for _, e := range ds.Entries() {
			n, err := d.DownloadAll(ctx, e.Topic, e.Papers)
			if err != nil {
				exitWithError(ExitError, "downloading pdfs: %v", err)
			}
			downloaded += n
		}
	}

	if err := search.SaveDataset(a.root, ds); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	papers := ds.All()
	if humanOutput {
		for _, e := range ds.Entries() {
			outputHuman("%s (%d papers)\n", e.Topic, len(e.Papers))
			printPapersHuman(e.Papers)
			fmt.Println()
		}
		outputHuman("Saved %d papers to %s\n", len(papers), config.PapersPath(a.root))
		if searchPDFs {
			outputHuman("PDFs available: %d\n", downloaded)
		}
		return nil
	}
	return outputJSON(SearchResult{Topics: ds.Topics(), Count: len(papers), Downloaded: downloaded, Papers: papers})
}

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "List or search the collected papers",
	Long: `List the papers in data/papers.jsonl.

With --query the papers are indexed into the workspace database and
searched with SQLite full-text search. Terms match prefixes, so
"gene" matches "genetic".

Author filters match the family name exactly and the given name by
prefix: "Yu", "Timothy Yu" and "Yu, Tim" all match Timothy C Yu.

--sort citations lists the most cited papers first.

Examples:
  lsy papers -q "protein language model"
  lsy papers --sort citations --limit 10
  lsy papers -a Bloom -a "Tim Yu" --year 2020:
  lsy papers --venue nature --year 2023`,
	Args: cobra.NoArgs,
	RunE: runPapers,
}

// PapersResult is the response of the papers command.
type PapersResult struct {
	Query  string                `json:"query,omitempty"`
	Count  int                   `json:"count"`
	Papers []reference.Reference `json:"papers"`
}

func runPapers(cmd *cobra.Command, args []string) error {
	f, err := filter.New(papersAuthors, papersYear, papersVenue)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if papersSort != "" && papersSort != "citations" {
		exitWithError(ExitError, "--sort must be \"citations\", got %q", papersSort)
	}

	a := mustSetup(logging.FormatText)

	var refs []reference.Reference
	switch {
	case papersQuery != "":
		a.mustIndexPapers()
		defer a.close()
		if refs, err = a.db.Search(papersQuery, papersLimit); err != nil {
			exitWithError(ExitError, "searching: %v", err)
		}
	case papersSort != "":
		a.mustIndexPapers()
		defer a.close()
		if refs, err = a.db.ListAll(papersLimit); err != nil {
			exitWithError(ExitError, "listing papers: %v", err)
		}
	default:
		if refs, err = storage.ReadAll(config.PapersPath(a.root)); err != nil {
			exitWithError(ExitDataError, "reading papers: %v", err)
		}
	}
	refs = f.Apply(refs)
	if refs == nil {
		refs = []reference.Reference{}
	}

	if humanOutput {
		if len(refs) == 0 {
			outputHuman("No papers found\n")
			return nil
		}
		printPapersHuman(refs)
		return nil
	}
	return outputJSON(PapersResult{Query: papersQuery, Count: len(refs), Papers: refs})
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a single collected paper by ID",
	Long: `Show one paper from data/papers.jsonl by its ID.

Example:
  lsy get 649def34f8be52c8b66281af98ae884c09aef38b`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	a := mustSetup(logging.FormatText)
	a.mustIndexPapers()
	defer a.close()

	id := args[0]
	ref, err := a.db.GetByID(id)
	if err != nil {
		exitWithError(ExitError, "getting paper: %v", err)
	}
	if ref == nil {
		exitWithError(ExitDataError, "paper not found: %s", id)
	}

	if humanOutput {
		printPaperDetail(*ref)
		return nil
	}
	return outputJSON(ref)
}

func printPaperDetail(ref reference.Reference) {
	fmt.Println(ref.ID)
	fmt.Println(strings.Repeat("=", DetailTitleMaxLen))
	fmt.Println()
	fmt.Printf("Title:     %s\n", wrapText(ref.Title, TextWrapWidth, "           "))
	if len(ref.Authors) > 0 {
		fmt.Printf("Authors:   %s\n", wrapText(strings.Join(ref.AuthorNames(), ", "), TextWrapWidth, "           "))
	}
	fmt.Printf("Year:      %s\n", ref.YearString())
	if ref.Venue != "" {
		fmt.Printf("Venue:     %s\n", ref.Venue)
	}
	fmt.Printf("Citations: %d\n", ref.Citations)
	if ref.URL != "" {
		fmt.Printf("URL:       %s\n", ref.URL)
	}
	if ref.LocalPDF != "" {
		fmt.Printf("PDF:       %s\n", ref.LocalPDF)
	}
	if ref.HasAbstract() {
		fmt.Println()
		fmt.Println(wrapText(ref.Abstract, TextWrapWidth, ""))
	}
}
