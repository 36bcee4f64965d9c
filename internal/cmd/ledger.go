package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pawtrawl/pawtrawl/internal/retention"
)

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List businesses due for a recrawl",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *retention.Ledger) error {
			due, err := ledger.DueForCrawl()
			if err != nil {
				return fmt.Errorf("failed to list due businesses: %w", err)
			}

			if len(due) == 0 {
				fmt.Println("No businesses due for recrawl.")
				return nil
			}

			fmt.Printf("%d business(es) due for recrawl:\n\n", len(due))
			for _, b := range due {
				if b.NextCrawlDue == nil {
					fmt.Printf("  %-40s %-18s never crawled\n", b.BusinessID, b.BusinessType)
					continue
				}
				fmt.Printf("  %-40s %-18s due %s\n",
					b.BusinessID, b.BusinessType, b.NextCrawlDue.Format("2006-01-02"))
			}
			return nil
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired crawl versions and their content files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *retention.Ledger) error {
			summary, err := ledger.ExpireOldCrawls()
			if err != nil {
				return fmt.Errorf("cleanup failed: %w", err)
			}

			fmt.Printf("Crawls deleted:  %d\n", summary.CrawlsDeleted)
			fmt.Printf("Files deleted:   %d\n", summary.FilesDeleted)
			fmt.Printf("Bytes freed:     %d\n", summary.BytesFreed)

			stats, err := ledger.Stats()
			if err != nil {
				return fmt.Errorf("failed to read ledger stats: %w", err)
			}
			fmt.Printf("\nLedger: %d business(es), %d active crawl version(s)\n",
				stats.TotalBusinesses, stats.ActiveCrawls)
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history URL",
	Short: "Show the stored crawl versions for a business",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(func(ledger *retention.Ledger) error {
			business, err := ledger.GetBusiness(args[0])
			if err != nil {
				return fmt.Errorf("failed to look up business: %w", err)
			}
			if business == nil {
				fmt.Printf("No record for %s\n", args[0])
				return nil
			}

			fmt.Printf("Business:    %s (%s)\n", business.BusinessID, business.BusinessType)
			fmt.Printf("Crawl count: %d\n", business.CrawlCount)
			if business.NextCrawlDue != nil {
				fmt.Printf("Next due:    %s\n", business.NextCrawlDue.Format(time.RFC3339))
			}

			history, err := ledger.History(args[0])
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}
			if len(history) == 0 {
				fmt.Println("\nNo stored crawl versions.")
				return nil
			}

			fmt.Printf("\n%-4s %-38s %-8s %-10s %s\n", "Ver", "Crawl ID", "Pages", "Credits", "Expires")
			for _, rec := range history {
				fmt.Printf("%-4d %-38s %-8d %-10d %s\n",
					rec.Version, rec.CrawlID, rec.PagesCrawled, rec.CreditsUsed,
					rec.ExpiresAt.Format("2006-01-02"))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dueCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(historyCmd)
}

// withLedger opens the configured ledger, runs fn, and closes it.
func withLedger(fn func(*retention.Ledger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ledger, err := retention.NewLedger(cfg.Retention)
	if err != nil {
		return fmt.Errorf("failed to open retention ledger: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	return fn(ledger)
}
