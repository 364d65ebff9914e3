package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citeguard/internal/pipeline"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previously analyzed documents",
	Long: `History lists the reports recorded in the local history database
(~/.citeguard/history.db unless history.path is set), newest first.

Example:
  citeguard history
  citeguard history --limit 5
  citeguard history show <report-id>`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Print a stored report as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <report-id>",
	Short: "Remove a stored report",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of reports to list (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	db, err := openHistory(cfg, logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if db == nil {
		return fmt.Errorf("history is disabled (history.enabled: false)")
	}
	defer func() { _ = db.Close() }()

	reports, err := db.ListReports(historyLimit)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	if len(reports) == 0 {
		fmt.Fprintln(os.Stderr, "No reports recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tTRUST\tCITATIONS\tVERIFIED\tHALLUCINATED\tAMBIGUOUS\tSOURCE")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.TrustScore,
			r.TotalCitations, r.VerifiedCount, r.HallucinatedCount, r.AmbiguousCount, r.Source)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	db, err := openHistory(cfg, logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if db == nil {
		return fmt.Errorf("history is disabled (history.enabled: false)")
	}
	defer func() { _ = db.Close() }()

	report, err := db.GetReport(args[0])
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	if report == nil {
		return fmt.Errorf("no report with id %s", args[0])
	}

	fmt.Print(pipeline.NewRenderer(cfg.Output.IncludeFooter).Markdown(report))
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	db, err := openHistory(cfg, logger)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if db == nil {
		return fmt.Errorf("history is disabled (history.enabled: false)")
	}
	defer func() { _ = db.Close() }()

	if err := db.DeleteReport(args[0]); err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	fmt.Printf("✓ Deleted report %s\n", args[0])
	return nil
}
