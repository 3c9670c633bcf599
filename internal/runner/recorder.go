package runner

import (
	"context"
	"sync"
)

// Recorder is a Runner that remembers steps instead of executing them.
type Recorder struct {
	mu    sync.Mutex
	steps []Step
	// fail maps a step name to the exit code it should fail with.
	fail map[string]int
	// hooks run after a step is recorded, e.g. to fake the files a tool produces.
	hooks map[string]func(Step) error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		fail:  make(map[string]int),
		hooks: make(map[string]func(Step) error),
	}
}

// FailOn makes the named step fail with exitCode.
func (r *Recorder) FailOn(name string, exitCode int) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fail[name] = exitCode

	return r
}

// OnStep registers fn to run when the named step is recorded.
func (r *Recorder) OnStep(name string, fn func(Step) error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hooks[name] = fn

	return r
}

// Run records step and applies the configured failure or hook.
func (r *Recorder) Run(ctx context.Context, step Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.steps = append(r.steps, step)
	code, failing := r.fail[step.Name]
	hook := r.hooks[step.Name]
	r.mu.Unlock()

	if failing {
		return &StepError{Name: step.Name, ExitCode: code}
	}

	if hook != nil {
		return hook(step)
	}

	return nil
}

// Steps returns a copy of the recorded steps.
func (r *Recorder) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Step(nil), r.steps...)
}

// Names returns the recorded step names in order.
func (r *Recorder) Names() []string {
	steps := r.Steps()

	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Name)
	}

	return names
}
