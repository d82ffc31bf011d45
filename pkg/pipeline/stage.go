package pipeline

type StageType string

const (
	Parallel StageType = "parallel"
	Serial   StageType = "serial"
)

func (t StageType) Valid() bool {
	return t == Parallel || t == Serial
}

// Stage is a named group of jobs with a dispatch discipline. Job order only
// matters for serial stages.
type Stage struct {
	Type StageType `yaml:"type" json:"type"`
	Jobs []JobRef  `yaml:"jobs" json:"jobs"`
}

func ParallelStage(jobs ...JobRef) Stage {
	return Stage{Type: Parallel, Jobs: jobs}
}

func SerialStage(jobs ...JobRef) Stage {
	return Stage{Type: Serial, Jobs: jobs}
}

// Config holds both registries. Nil maps are treated as empty.
type Config[C any] struct {
	Pipelines map[string]Task[C]
	Stages    map[string]Stage
}
