package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exponent-ml/exponent/internal/project"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the working directory and report which integrations are configured",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(project.DefaultDir(cfg.Root), 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	fmt.Printf("Working directory: %s\n\n", cfg.Root)

	check := func(name string, ok bool, hint string) {
		mark := "MISSING"
		if ok {
			mark = "ok"
		}
		fmt.Printf("  %-22s %s", name, mark)
		if !ok {
			fmt.Printf("  (set %s)", hint)
		}
		fmt.Println()
	}

	fmt.Println("Integrations:")
	check("code generation", cfg.CodeGen.APIKey != "", "OPENAI_API_KEY")
	check("object storage", cfg.Storage.Bucket != "" && cfg.Storage.AccessKey != "", "S3_BUCKET, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY")
	check("cloud training", cfg.Modal.TokenID != "" && cfg.Modal.TokenSecret != "", "MODAL_TOKEN_ID, MODAL_TOKEN_SECRET")
	check("github deploy", cfg.GitHub.Token != "", "GITHUB_TOKEN or `exponent login --provider github`")

	fmt.Println("\nLocal generation and training work without the cloud integrations.")
	return nil
}
