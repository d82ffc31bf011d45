// Package pipeline runs declarative stages of jobs against a shared
// execution context.
//
// A stage is either parallel (all jobs start together, first failure settles
// the run) or serial (jobs run one after another, first failure stops the
// rest). A job is a registered Task or a reference to another stage, so
// stages nest to any depth. Stage graphs must be acyclic; Validate reports
// cycles, but RunStageJobs does not guard against them.
//
// Outcomes are Result values:
// - Success: all jobs succeeded, values in declaration order
// - Fail: a job returned an error, panicked, or was not registered
// - Cancel: a job aborted the chain on purpose (see Abort) or ctx was done
package pipeline
