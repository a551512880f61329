package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/exponent-ml/exponent/internal/domain"
)

var (
	analyzePrompt string
	analyzeOutput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dataset>",
	Short: "Summarize a dataset; with --prompt, generate a project from it",
	Long: `Analyze a CSV, TSV, JSON, or JSONL dataset and print its column summary.

With --prompt, the summary feeds a full generation run and a new project is
created. With --output, the generated files are also copied to the given
directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzePrompt, "prompt", "", "Task description; triggers project generation")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "Directory to copy generated files into")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()
	path := args[0]

	_, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	if analyzePrompt == "" {
		summary, err := orch.AnalyzeDataset(ctx, path)
		if err != nil {
			return err
		}
		printSummary(summary)
		return nil
	}

	proj, err := orch.GenerateProject(ctx, analyzePrompt, path)
	if err != nil {
		return err
	}

	printSummary(proj.Dataset)
	fmt.Printf("\nProject %s created with %d files:\n", proj.ID, len(proj.Files))
	for _, f := range proj.Files {
		fmt.Printf("  %s\n", f)
	}

	if analyzeOutput != "" {
		if err := copyProjectFiles(orch.ProjectDir(proj.ID), analyzeOutput, proj.Files); err != nil {
			return err
		}
		fmt.Printf("\nCopied generated files to %s\n", analyzeOutput)
	}
	return nil
}

func printSummary(s *domain.DatasetSummary) {
	if s == nil {
		return
	}

	sampled := ""
	if s.Sampled {
		sampled = " (column statistics from a sample)"
	}
	fmt.Printf("%s: %d rows, %d columns, target %q%s\n\n",
		s.FileName, s.Rows, s.ColumnCount(), s.TargetColumn, sampled)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tNULLS\tUNIQUE\tSAMPLES")
	for _, col := range s.Columns {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			col.Name, col.Type, col.NullCount, col.UniqueCount, strings.Join(col.SampleValues, ", "))
	}
	w.Flush()
}

func copyProjectFiles(srcDir, dstDir string, files []string) error {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(srcDir, name))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dstDir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
