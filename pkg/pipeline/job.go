package pipeline

import (
	"bytes"
	"context"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Task is a registered callable job. c is the execution context shared by
// every job of one run.
type Task[C any] func(ctx context.Context, c C) (any, error)

type JobType string

const (
	// JobTypeTask references a Task by key. It is the zero value.
	JobTypeTask  JobType = ""
	JobTypeStage JobType = "stage"

	// JobTypeUntyped marks a decoded mapping without a jobType. It is not a
	// task reference and runs as a no-op like any other unknown shape.
	JobTypeUntyped JobType = "untyped"
)

// JobRef is one entry of a stage's job list: either the key of a registered
// task or a reference to another stage.
type JobRef struct {
	JobType JobType `yaml:"jobType,omitempty" json:"jobType,omitempty"`
	Name    string  `yaml:"name" json:"name"`
}

func Job(key string) JobRef {
	return JobRef{JobType: JobTypeTask, Name: key}
}

func StageRef(name string) JobRef {
	return JobRef{JobType: JobTypeStage, Name: name}
}

func (j JobRef) IsTask() bool  { return j.JobType == JobTypeTask }
func (j JobRef) IsStage() bool { return j.JobType == JobTypeStage }

func (j JobRef) String() string {
	switch j.JobType {
	case JobTypeTask:
		return j.Name
	case JobTypeStage:
		return "stage:" + j.Name
	default:
		return string(j.JobType) + ":" + j.Name
	}
}

// UnmarshalYAML accepts a plain task key or a {jobType, name} mapping.
func (j *JobRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var key string
		if err := value.Decode(&key); err != nil {
			return err
		}
		*j = Job(key)
		return nil
	}

	type plain JobRef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*j = fromMapping(JobRef(p))
	return nil
}

func (j *JobRef) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		var key string
		if err := json.Unmarshal(trimmed, &key); err != nil {
			return err
		}
		*j = Job(key)
		return nil
	}

	type plain JobRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*j = fromMapping(JobRef(p))
	return nil
}

// fromMapping keeps task references to the scalar form only.
func fromMapping(j JobRef) JobRef {
	if j.JobType == JobTypeTask {
		j.JobType = JobTypeUntyped
	}
	return j
}
