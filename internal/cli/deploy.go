package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/exponent-ml/exponent/internal/domain"
)

var (
	deployProjectID string
	deployName      string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Push a project to a new GitHub repository",
	RunE:  runDeploy,
}

var deployListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your GitHub repositories",
	RunE:  runDeployList,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.AddCommand(deployListCmd)

	deployCmd.Flags().StringVar(&deployProjectID, "project-id", "", "Project to deploy (required)")
	deployCmd.Flags().StringVar(&deployName, "name", "", "Repository name (default: derived from the project id)")
	deployCmd.MarkFlagRequired("project-id")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()

	_, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	res, err := orch.Deploy(ctx, deployProjectID, deployName)
	if err != nil {
		if errors.Is(err, domain.ErrRepositoryExists) {
			return fmt.Errorf("%w\nRetry with: exponent deploy --project-id %s --name <new-name>", err, deployProjectID)
		}
		return err
	}

	fmt.Printf("Deployed project %s to %s\n", deployProjectID, res.RepoURL)
	fmt.Println("Pushed files:")
	for _, f := range res.Files {
		fmt.Printf("  %s\n", f)
	}
	return nil
}

func runDeployList(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()

	_, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	repos, err := orch.ListRepos(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		fmt.Println("No repositories found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPRIVATE\tURL")
	for _, r := range repos {
		fmt.Fprintf(w, "%s\t%t\t%s\n", r.FullName, r.Private, r.HTMLURL)
	}
	w.Flush()
	return nil
}
