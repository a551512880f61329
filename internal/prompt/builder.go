package prompt

import (
	"fmt"
	"strings"

	"github.com/exponent-ml/exponent/internal/domain"
)

// SystemPrompt frames the code generation agent. Semantic correctness of
// the returned code is the agent's responsibility, not this tool's.
const SystemPrompt = `You are an expert ML engineer. You generate focused, production-ready Python code for a specific task and dataset. You respond only with markdown code blocks labeled with the target file name.`

// Request is the payload handed to the code generation client: a fixed
// sequence of sections rendered as a single user message.
type Request struct {
	System string
	User   string
}

// Build combines the task description and dataset snapshot into a request
// payload. Pure function; performs no I/O. Whitespace-only tasks are
// rejected before any network call can happen.
func Build(task string, ds *domain.DatasetSummary) (*Request, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, domain.ErrEmptyTask
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Task**: %s\n\n", task)

	if ds != nil {
		fmt.Fprintf(&b, "**Dataset**: %s\n", ds.FileName)
		fmt.Fprintf(&b, "- Shape: %d rows, %d columns\n", ds.Rows, ds.ColumnCount())
		if ds.TargetColumn != "" {
			fmt.Fprintf(&b, "- Target column: %s\n", ds.TargetColumn)
		}
		fmt.Fprintf(&b, "- File size: %d bytes\n\n", ds.FileSize)

		b.WriteString("**Column Analysis:**\n")
		for _, col := range ds.Columns {
			fmt.Fprintf(&b, "- %s: %s (unique: %d, nulls: %d)\n",
				col.Name, col.Type, col.UniqueCount, col.NullCount)
			if len(col.SampleValues) > 0 {
				fmt.Fprintf(&b, "  Sample values: %s\n", strings.Join(col.SampleValues, ", "))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(`**Requirements:**
1. Make the code dataset-specific: use the actual column names, handle the observed types and null values, target the correct column, and load data with relative paths (the dataset sits in the same directory).
2. Include proper error handling and logging.
3. Use modern ML libraries (scikit-learn, pandas, numpy).
4. Make code modular and reusable.

**Generate ONLY these files:**
1. ` + "`model.py`" + ` - Model class and preprocessing pipeline
2. ` + "`train.py`" + ` - Training script with data loading and model training
3. ` + "`predict.py`" + ` - Prediction script for making predictions
4. ` + "`requirements.txt`" + ` - Only necessary dependencies

Label each markdown code block with the file name, e.g. ` + "```model.py" + `.
`)

	return &Request{System: SystemPrompt, User: b.String()}, nil
}
