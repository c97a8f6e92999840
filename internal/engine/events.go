package engine

// Events receives progress callbacks during a run. Implementations must
// be fast and must not block; the loop calls them inline.
type Events interface {
	StepStart(index, total int, description string)
	StepEnd(index, total int, status, detail string)
	Recovery(index int, failure string)
	Reassess(count, remaining int)
}

// NoopEvents ignores all callbacks.
type NoopEvents struct{}

func (NoopEvents) StepStart(int, int, string)       {}
func (NoopEvents) StepEnd(int, int, string, string) {}
func (NoopEvents) Recovery(int, string)             {}
func (NoopEvents) Reassess(int, int)                {}
