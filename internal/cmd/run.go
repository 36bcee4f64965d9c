package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pawtrawl/pawtrawl/internal/classifier"
	"github.com/pawtrawl/pawtrawl/internal/config"
	"github.com/pawtrawl/pawtrawl/internal/crawlclient"
	"github.com/pawtrawl/pawtrawl/internal/extract"
	"github.com/pawtrawl/pawtrawl/internal/llm"
	"github.com/pawtrawl/pawtrawl/internal/logging"
	"github.com/pawtrawl/pawtrawl/internal/merger"
	"github.com/pawtrawl/pawtrawl/internal/pipeline"
	"github.com/pawtrawl/pawtrawl/internal/retention"
	"github.com/pawtrawl/pawtrawl/internal/scoring"
)

var runCmd = &cobra.Command{
	Use:   "run [URLs...]",
	Short: "Crawl businesses and extract structured data",
	Long: `Run the full pipeline for one or more business URLs. With --batch-file
a YAML list of {url, business_type} entries is processed instead of
command-line URLs.`,
	Args: cobra.ArbitraryArgs,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("type", "t", "", fmt.Sprintf(
		"Business type: %s", strings.Join(extract.BusinessTypes(), ", ")))
	runCmd.Flags().String("batch-file", "", "YAML file with url/business_type entries")
	runCmd.Flags().Bool("no-llm-classifier", false, "Use rule-based classification only (no LLM costs)")
	runCmd.Flags().Bool("include-html", false, "Keep raw HTML in the crawl audit files")
	runCmd.Flags().String("output-dir", "./output", "Directory for merged/extracted/metrics files")
	runCmd.Flags().String("storage-dir", "./crawl_storage", "Directory for crawl audit files")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"pipeline.include_html", "include-html"},
		{"pipeline.output_dir", "output-dir"},
		{"pipeline.storage_dir", "storage-dir"},
	}

	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, runCmd.Flags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noLLM, _ := cmd.Flags().GetBool("no-llm-classifier"); noLLM {
		cfg.Classifier.UseLLM = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	batchFile, _ := cmd.Flags().GetString("batch-file")
	businessType, _ := cmd.Flags().GetString("type")

	var items []pipeline.BatchItem
	switch {
	case batchFile != "":
		items, err = loadBatchFile(batchFile)
		if err != nil {
			return err
		}
	case len(args) > 0:
		if businessType == "" {
			return fmt.Errorf("--type is required when URLs are given")
		}
		if !extract.ValidBusinessType(businessType) {
			return fmt.Errorf("unknown business type %q, valid types: %s",
				businessType, strings.Join(extract.BusinessTypes(), ", "))
		}
		for _, url := range args {
			items = append(items, pipeline.BatchItem{URL: url, BusinessType: businessType})
		}
	default:
		return fmt.Errorf("specify URLs or --batch-file")
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	p, ledger, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	metrics, err := p.RunBatch(cmd.Context(), items)
	if err != nil {
		return err
	}

	printReport(metrics)
	return nil
}

// buildPipeline wires the pipeline stages from config.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, *retention.Ledger, error) {
	// The extractor always needs a completer; the classifier only
	// consults it when the LLM pass is enabled.
	completer, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	cls := classifier.New(cfg.Classifier, completer, logger)

	m, err := merger.New(cfg.Merger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create merger: %w", err)
	}

	extractor := extract.New(cfg.Extraction, completer, logger)
	crawler := crawlclient.New(cfg.Crawl, logger)

	ledger, err := retention.NewLedger(cfg.Retention)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open retention ledger: %w", err)
	}

	return pipeline.New(cfg.Pipeline, crawler, cls, m, extractor, ledger, logger), ledger, nil
}

// loadBatchFile reads a YAML list of businesses to process.
func loadBatchFile(path string) ([]pipeline.BatchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var items []pipeline.BatchItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("batch file %s contains no entries", path)
	}
	for i, item := range items {
		if item.URL == "" {
			return nil, fmt.Errorf("batch entry %d has no url", i)
		}
		if !extract.ValidBusinessType(item.BusinessType) {
			return nil, fmt.Errorf("batch entry %d has unknown business type %q", i, item.BusinessType)
		}
	}
	return items, nil
}

// printReport renders the aggregate quality report and recommendation.
func printReport(metrics []scoring.QualityMetrics) {
	stats := scoring.Aggregate(metrics)
	byType := scoring.AggregateByType(metrics)

	fmt.Println(scoring.FormatReport(stats, byType))

	rec := scoring.Recommend(metrics)
	fmt.Printf("Decision: %s\n", rec.Decision)
	for _, step := range rec.NextSteps {
		fmt.Printf("  - %s\n", step)
	}
}
