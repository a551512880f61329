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
	trainProjectID string
	trainDataset   string
	trainTask      string
	trainCloud     bool
	trainStatusID  string
	trainList      bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run or submit a training job",
	Long: `Train a project's model. By default the training script runs locally and
the command blocks until it exits. With --cloud, the dataset and script are
uploaded to object storage and submitted to the serverless backend; the
command returns immediately with a job id to poll via --status.

With --task (and optionally --dataset) a new project is generated first and
then trained.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainProjectID, "project-id", "", "Project to train")
	trainCmd.Flags().StringVar(&trainDataset, "dataset", "", "Dataset file (defaults to the project's stored copy)")
	trainCmd.Flags().StringVar(&trainTask, "task", "", "Generate a new project from this task, then train it")
	trainCmd.Flags().BoolVar(&trainCloud, "cloud", false, "Submit to the serverless training backend")
	trainCmd.Flags().StringVar(&trainStatusID, "status", "", "Check the status of a training job")
	trainCmd.Flags().BoolVar(&trainList, "list", false, "List recorded training jobs (filter with --project-id)")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext()
	defer stop()

	_, orch, err := buildOrchestrator(ctx)
	if err != nil {
		return err
	}

	switch {
	case trainList:
		var jobs []domain.TrainingJob
		if trainProjectID != "" {
			jobs, err = orch.JobsForProject(ctx, trainProjectID)
		} else {
			jobs, err = orch.Jobs(ctx)
		}
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No training jobs recorded")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROJECT\tBACKEND\tSTATUS\tSUBMITTED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				j.ID, j.ProjectID, j.Backend, j.Status, j.SubmittedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
		return nil

	case trainStatusID != "":
		job, err := orch.JobStatus(ctx, trainStatusID)
		if err != nil {
			return err
		}
		fmt.Printf("Job %s (%s): %s\n", job.ID, job.Backend, job.Status)
		if job.LogExcerpt != "" {
			fmt.Printf("\n%s\n", job.LogExcerpt)
		}
		return nil
	}

	projectID := trainProjectID
	if projectID == "" {
		if trainTask == "" {
			return fmt.Errorf("pass --project-id, or --task to generate a project first")
		}
		proj, err := orch.GenerateProject(ctx, trainTask, trainDataset)
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s\n", proj.ID)
		projectID = proj.ID
	}

	if trainCloud {
		job, err := orch.TrainCloud(ctx, projectID, trainDataset)
		if err != nil {
			return err
		}
		fmt.Printf("Submitted cloud training job %s\n", job.ID)
		fmt.Printf("Check progress with: exponent train --status %s\n", job.ID)
		return nil
	}

	fmt.Printf("Training project %s locally...\n", projectID)
	job, err := orch.TrainLocal(ctx, projectID)
	if err != nil {
		var trainErr *domain.TrainingError
		if errors.As(err, &trainErr) {
			fmt.Fprintf(os.Stderr, "Training failed (exit code %d):\n%s\n", trainErr.ExitCode, trainErr.Output)
		}
		return err
	}

	fmt.Printf("Training succeeded (job %s)\n", job.ID)
	return nil
}
