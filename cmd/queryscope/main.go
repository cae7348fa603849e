package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"queryscope/internal/config"
	"queryscope/internal/indexer"
	"queryscope/internal/profile"
	"queryscope/internal/query"
	"queryscope/internal/store"
)

var (
	configPath    string
	searchTopK    int
	searchProfile bool
)

var rootCmd = &cobra.Command{
	Use:   "queryscope",
	Short: "Code & log search engine with query profiling",
	Long: `queryscope indexes source trees and log files into binary segments and
searches them with term, boolean and phrase queries. The --profile flag on
search breaks query time down per query node and operation.`,
}

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Recursively index a directory into a new segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Long: `Search indexed data. Query syntax: bare terms (implicit AND),
"quoted phrases", OR between groups, level:ERROR / level:WARN and ext:.go
filters.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".queryscope.yaml", "Path to config file")
	searchCmd.Flags().IntVar(&searchTopK, "top", 0, "Number of results to return (0 = config default)")
	searchCmd.Flags().BoolVar(&searchProfile, "profile", false, "Record and print a per-node timing breakdown")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	root := args[0]
	if err := os.MkdirAll(cfg.IndexDir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	log.Info().Str("root", root).Str("out", cfg.IndexDir).Msg("indexing")

	crawler := indexer.NewCrawler(root, cfg.IgnoreDirs, cfg.Extensions)
	builder, err := indexer.NewIndexBuilder(cfg.IndexDir, crawler)
	if err != nil {
		return err
	}
	if err := builder.Build(); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	log.Info().Msg("indexing complete")
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	queryStr := strings.Join(args, " ")

	reader, err := store.NewIndexReader(cfg.IndexDir)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer reader.Close()

	topK := searchTopK
	if topK <= 0 {
		topK = cfg.TopK
	}

	start := time.Now()
	resp, err := query.Search(reader, queryStr, query.Options{
		TopK:    topK,
		Profile: searchProfile,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("Found %d results in %v:\n", len(resp.Results), elapsed)
	for i, res := range resp.Results {
		fmt.Printf("%d. %s (Line: %d, Score: %.2f)\n", i+1, res.Path, res.LineNum, res.Score)
		if res.Snippet != "" {
			fmt.Printf("   %s\n", res.Snippet)
		}
	}

	if searchProfile {
		fmt.Printf("\nProfile (session %s):\n", resp.Session)
		printProfile(resp.Profile)
	}
	return nil
}

func printProfile(results []profile.Result) {
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tTOTAL\tBUILD_SCORER\tNEXT_DOC\tADVANCE\tSCORE\tMATCH")
	var walk func(r profile.Result, depth int)
	walk = func(r profile.Result, depth int) {
		fmt.Fprintf(tw, "%s%s\t%v\t%s\t%s\t%s\t%s\t%s\n",
			strings.Repeat("  ", depth), r.Query, r.TotalTime(),
			cell(r, profile.BuildScorer),
			cell(r, profile.NextDoc),
			cell(r, profile.Advance),
			cell(r, profile.Score),
			cell(r, profile.Match),
		)
		for _, c := range r.Children {
			walk(c, depth+1)
		}
	}
	for _, r := range results {
		walk(r, 0)
	}
	tw.Flush()
}

func cell(r profile.Result, t profile.TimingType) string {
	name := t.String()
	return fmt.Sprintf("%v/%d", r.Timings[name], r.Counts[name])
}
