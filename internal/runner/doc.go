// Package runner executes the external tools of the pipeline.
//
// Every tool is a Step. ExecRunner runs it to completion and turns a
// non-zero exit into a *StepError naming the tool, which callers treat as
// fatal. Recorder is an in-memory Runner used by tests and by the plan
// command.
package runner
