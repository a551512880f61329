package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var initDataset string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new ML project",
	RunE:  runInitInteractive,
}

var initQuickCmd = &cobra.Command{
	Use:   "quick <task>",
	Short: "Create a project from a task description without prompts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInitQuick,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.AddCommand(initQuickCmd)

	initCmd.PersistentFlags().StringVar(&initDataset, "dataset", "", "Path to the dataset file (csv, tsv, json, jsonl)")
}

func runInitQuick(cmd *cobra.Command, args []string) error {
	return generateAndReport(strings.Join(args, " "), initDataset)
}

// runInitInteractive prompts for whatever was not given on the command line.
func runInitInteractive(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	task := strings.Join(args, " ")
	if strings.TrimSpace(task) == "" {
		fmt.Print("Describe the ML task (e.g. \"predict customer churn\"): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read task: %w", err)
		}
		task = strings.TrimSpace(line)
	}

	dataset := initDataset
	if dataset == "" {
		fmt.Print("Path to the dataset file (empty to skip): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read dataset path: %w", err)
		}
		dataset = strings.TrimSpace(line)
	}

	return generateAndReport(task, dataset)
}

func generateAndReport(task, dataset string) error {
	ctx, stop := commandContext()
	defer stop()

	_, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	proj, err := orch.GenerateProject(ctx, task, dataset)
	if err != nil {
		return err
	}

	fmt.Printf("Created project %s\n\n", proj.ID)
	fmt.Printf("  Task: %s\n", proj.Task)
	if proj.Dataset != nil {
		fmt.Printf("  Dataset: %s (%d rows, %d columns)\n",
			proj.Dataset.FileName, proj.Dataset.Rows, proj.Dataset.ColumnCount())
	}
	fmt.Println("  Files:")
	for _, f := range proj.Files {
		fmt.Printf("    %s\n", f)
	}
	fmt.Printf("\nNext: exponent train --project-id %s\n", proj.ID)
	return nil
}
