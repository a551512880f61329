package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ProjectStatus represents the lifecycle stage of a generated project.
// Values include ProjectStatusCreated, ProjectStatusTrained, and ProjectStatusDeployed.
type ProjectStatus string

const (
	ProjectStatusCreated  ProjectStatus = "created"
	ProjectStatusTrained  ProjectStatus = "trained"
	ProjectStatusDeployed ProjectStatus = "deployed"
)

// Generated file names written into every project directory.
const (
	FileModel        = "model.py"
	FileTrain        = "train.py"
	FilePredict      = "predict.py"
	FileRequirements = "requirements.txt"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Project ties one task description and one dataset to a set of generated
// files stored on local disk. Generated files are immutable once written;
// training and deployment treat them as read-only inputs.
type Project struct {
	ID          string         `json:"id"`
	Task        string         `json:"task"`
	Dataset     *DatasetSummary `json:"dataset,omitempty"`
	DatasetFile string         `json:"dataset_file,omitempty"`
	Files       StringArray    `json:"files"`
	Status      ProjectStatus  `json:"status"`
	RepoURL     string         `json:"repo_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// GeneratedFiles holds the artifacts returned by the code generation
// endpoint, keyed by file name.
type GeneratedFiles map[string]string
