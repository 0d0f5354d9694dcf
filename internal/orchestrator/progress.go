package orchestrator

import "github.com/sysupdater/sysupdater/internal/catalog"

// Progress reports operation lifecycle to the operator.
type Progress interface {
	Start(op catalog.Operation) Tracker
	Skipped(op catalog.Operation, reason string)
}

// Tracker follows one running operation.
type Tracker interface {
	Step(message string)
	Done(result Result)
}

type noProgress struct{}

func (noProgress) Start(catalog.Operation) Tracker   { return noTracker{} }
func (noProgress) Skipped(catalog.Operation, string) {}

type noTracker struct{}

func (noTracker) Step(string) {}
func (noTracker) Done(Result) {}

// NoProgress reports nothing.
var NoProgress Progress = noProgress{}
