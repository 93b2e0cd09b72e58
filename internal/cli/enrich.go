package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/ppiankov/docscrape/internal/cache"
	"github.com/ppiankov/docscrape/internal/logging"
	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/pipeline"
	"github.com/ppiankov/docscrape/internal/record"
	"github.com/ppiankov/docscrape/internal/rules"
	"github.com/ppiankov/docscrape/internal/session"
	"github.com/ppiankov/docscrape/internal/worker"
	"github.com/spf13/cobra"
)

var (
	outJSON      string
	noCache      bool
	noRobots     bool
	noTable      bool
	insecureTLS  bool
	implicitWait time.Duration
	runTimeout   time.Duration
	rps          float64
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich <input.csv>",
	Short: "Enrich seed records from the configured sources",
	Long: `Enrich reads seed records from a CSV file and, for every record, visits
each configured source in order:
- runs the source's navigation and extraction steps
- scores the result candidates against the record
- runs the match steps on the first candidate scoring above 0.75
- appends extracted values to the record

Records are processed serially over one shared session.

Example:
  docscrape enrich people.csv
  docscrape enrich people.csv -m field-mapping.json -s sources.json -x matchers.json
  docscrape enrich people.csv --json enriched.json --rps 0.5 --timeout 1h`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func init() {
	rootCmd.AddCommand(enrichCmd)
	addRuleFlags(enrichCmd)

	enrichCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default from config: enriched.json)")
	enrichCmd.Flags().BoolVar(&noTable, "no-table", false, "skip the summary table")

	enrichCmd.Flags().DurationVar(&implicitWait, "wait", 0, "budget for every navigation (default from config: 10s)")
	enrichCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")
	enrichCmd.Flags().Float64Var(&rps, "rps", 0, "requests per second per host (default from config: 1)")
	enrichCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable page cache (force fresh fetch)")
	enrichCmd.Flags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt")
	enrichCmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRuleFlags(cmd, &cfg.Rules)
	applyEnrichFlags(cmd, cfg)

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	caps := session.NewRegistry()
	rs, err := rules.Load(cfg.Rules, caps)
	if err != nil {
		return err
	}
	for _, field := range rs.UnmatchedDataFields() {
		logger.Warn("data field has no matcher patterns; its steps always miss", "field", field)
	}

	records, err := record.Import(args[0], record.NewMapper(rs.Aliases))
	if err != nil {
		return err
	}
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Records: %d\n", len(records))
		fmt.Fprintf(os.Stderr, "Sources: %d\n", len(rs.Sources))
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	browser, err := session.NewBrowser(cfg.Session,
		session.WithPageCache(cache.FromConfig(cfg.Cache)),
		session.WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
		session.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	p := pipeline.NewPipeline(rs, browser, caps, logger)
	report, runErr := p.Run(ctx, records, progressPrinter(len(records)))

	// A cancelled run still emits the records finished so far
	if err := pipeline.RenderJSON(report, cfg.Output.JSONPath); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %d records to %s\n", len(report.Records), cfg.Output.JSONPath)
	if cfg.Output.Table {
		pipeline.RenderTable(cmd.OutOrStdout(), report)
	}

	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) {
			return fmt.Errorf("enrich stopped after %s: %w", runTimeout, runErr)
		}
		return fmt.Errorf("enrich stopped: %w", runErr)
	}
	return nil
}

func progressPrinter(total int) pipeline.Progress {
	return func(index int, er model.EnrichedRecord) {
		appended := 0
		for _, o := range er.Outcomes {
			appended += o.Appended
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] +%d values\n", index+1, total, appended)
	}
}

func applyEnrichFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("json") {
		cfg.Output.JSONPath = outJSON
	}
	if noTable {
		cfg.Output.Table = false
	}
	if flags.Changed("wait") {
		cfg.Session.ImplicitWait = implicitWait
	}
	if flags.Changed("rps") {
		cfg.RateLimiting.RequestsPerSecond = rps
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noRobots {
		cfg.Session.RespectRobots = false
	}
	if insecureTLS {
		cfg.Session.InsecureTLS = true
	}
}
