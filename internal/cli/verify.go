package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citeguard/internal/llm"
	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/pipeline"
)

var (
	verifyJSON string
	verifyMD   string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <candidates.json|->",
	Short: "Verify citations that were already extracted",
	Long: `Verify runs the verification pipeline on a JSON list of citations,
skipping LLM extraction. The input is either an array or an object with a
"citations" array; each entry may carry original_text, title, author, year
and doi.

Example:
  citeguard verify citations.json
  cat citations.json | citeguard verify - --json report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyJSON, "json", "", "output JSON path (optional)")
	verifyCmd.Flags().StringVar(&verifyMD, "md", "", "output Markdown path (optional)")
	verifyCmd.Flags().IntVar(&minTrustExit, "min-trust", 0, "exit with an error when the trust score is below this value")
	addRunFlags(verifyCmd)
}

// readCandidates decodes candidates from a file, or stdin for "-"
func readCandidates(path string) ([]model.CandidateCitation, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	return llm.ParseCitations(string(data))
}

func runVerify(cmd *cobra.Command, args []string) error {
	candidates, err := readCandidates(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	// Extraction is skipped, so no provider is needed
	cfg.LLM.Provider = "none"

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := commandContext(runTimeout)
	defer cancel()

	p, err := pipeline.NewPipeline(ctx, cfg, pipeline.WithLogger(logger), progressPrinter(cfg))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Verifying %d citations\n\n", len(candidates))
	}

	report, err := p.RunPipeline(ctx, candidates)
	if err != nil {
		return fmt.Errorf("verification interrupted: %w", err)
	}
	if args[0] != "-" {
		report.Source = args[0]
	}

	return finishReport(cfg, logger, report, verifyJSON, verifyMD)
}
