package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored projects, training jobs, and login state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()

	cfg, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Working directory: %s\n\n", cfg.Root)

	creds, err := orch.Auth().Status()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Println("Not logged in")
	} else {
		for provider, cred := range creds {
			state := "valid"
			if cred.Expired() {
				state = "expired"
			}
			who := cred.UserName
			if who == "" {
				who = cred.UserEmail
			}
			fmt.Printf("Logged in to %s as %s (%s)\n", provider, who, state)
		}
	}

	projects, err := orch.Projects()
	if err != nil {
		return err
	}
	fmt.Printf("\nProjects (%d):\n", len(projects))
	if len(projects) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTASK")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Status, truncate(p.Task, 60))
		}
		w.Flush()
	}

	jobs, err := orch.Jobs(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nTraining jobs (%d):\n", len(jobs))
	if len(jobs) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tBACKEND\tSTATUS\tSUBMITTED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				j.ID, j.ProjectID, j.Backend, j.Status, j.SubmittedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
