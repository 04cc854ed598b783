package exec

import (
	"sync"

	"github.com/merlin-labs/merlin/core"
)

// StepObservation captures one executed plan step outcome.
type StepObservation struct {
	ToolName   string
	StepIndex  int
	Kind       core.StepKind
	Confidence core.Confidence
	ExitCode   int
	DurationMS int64
	Success    bool
	TimedOut   bool
}

// InstallObservation captures one finished install attempt.
type InstallObservation struct {
	ToolName   string
	Status     core.InstallStatus
	Steps      int
	FailedStep int
	DurationMS int64
}

// Observer receives executor-level observability events.
type Observer interface {
	ObserveStep(observation StepObservation)
	ObserveInstall(observation InstallObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveStep(StepObservation)       {}
func (noopObserver) ObserveInstall(InstallObservation) {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide executor observability observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

func emitStepObservation(observation StepObservation) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveStep(observation)
}

func emitInstallObservation(observation InstallObservation) {
	observerMu.RLock()
	observer := activeObserver
	observerMu.RUnlock()
	observer.ObserveInstall(observation)
}
