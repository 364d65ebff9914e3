package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/citeguard/internal/pipeline"
)

var citationStyle string

// formatCmd represents the format command
var formatCmd = &cobra.Command{
	Use:   "format <citation>",
	Short: "Rewrite a citation in a citation style",
	Long: `Format asks the configured LLM provider to rewrite a single citation in
the requested style. The output is not checked against any index; run
'citeguard verify' for that.

Example:
  citeguard format "vaswani et al attention is all you need 2017 neurips"
  citeguard format "..." --style MLA`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)

	formatCmd.Flags().StringVar(&citationStyle, "style", "APA", "citation style (APA, MLA, Chicago, IEEE, ...)")
	addLLMFlags(formatCmd)
}

func runFormat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := commandContext(2 * time.Minute)
	defer cancel()

	p, err := pipeline.NewPipeline(ctx, cfg, pipeline.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	formatted, err := p.Format(ctx, strings.Join(args, " "), citationStyle)
	if err != nil {
		return fmt.Errorf("format failed: %w", err)
	}

	fmt.Println(formatted)
	return nil
}
