package pipeline

import (
	"errors"
	"sort"
)

// Validate checks the registries eagerly: stage types, task keys, stage
// references and reference cycles. Running a stage never calls it, so an
// engine that fails Validate still runs whatever it can resolve.
func (e *Engine[C]) Validate() error {
	names := make([]string, 0, len(e.stages))
	for name := range e.stages {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		stage := e.stages[name]
		if len(stage.Jobs) > 0 && !stage.Type.Valid() {
			errs = append(errs, configErrorf(ErrUnknownStageType, "stage %q has type %q", name, stage.Type))
		}
		for _, job := range stage.Jobs {
			switch job.JobType {
			case JobTypeTask:
				if t, ok := e.pipelines[job.Name]; !ok || t == nil {
					errs = append(errs, configErrorf(ErrJobNotFound, "stage %q references job %q", name, job.Name))
				}
			case JobTypeStage:
				if _, ok := e.stages[job.Name]; !ok {
					errs = append(errs, configErrorf(ErrStageNotFound, "stage %q references stage %q", name, job.Name))
				}
			}
		}
	}

	if err := e.findCycle(names); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (e *Engine[C]) findCycle(names []string) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(names))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, n := range path {
				if n == name {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), name)
			return cycleError(cycle)
		}

		state[name] = visiting
		path = append(path, name)
		for _, job := range e.stages[name].Jobs {
			if !job.IsStage() {
				continue
			}
			if _, ok := e.stages[job.Name]; !ok {
				continue
			}
			if err := visit(job.Name); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for _, name := range names {
		if state[name] == unvisited {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}
