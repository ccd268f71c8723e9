package pipeline

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrInvalidTransition = fmt.Errorf("invalid stage transition")

type Stage string

const (
	StageCreated           Stage = "created"
	StageUnpacking         Stage = "unpacking"
	StageTypeDetection     Stage = "type-detection"
	StagePublication       Stage = "publication"
	StageMetadataDiscovery Stage = "metadata-discovery"
	StageCrosswalk         Stage = "crosswalk"
	StageComplete          Stage = "complete"
	StageFailed            Stage = "failed"
)

// FSM tracks one ingest run through its fixed stage order. The order is a
// data dependency, not configuration: publication needs the detected type,
// the crosswalk needs the published bounding box and parsed documents.
type FSM struct {
	mu          sync.Mutex
	Transitions map[Stage]map[Stage]struct{}

	current Stage
	logger  *zap.Logger
}

type FSMOption func(*FSM)

func FSMWithLogger(logger *zap.Logger) FSMOption {
	return func(f *FSM) {
		f.logger = logger
	}
}

func NewFSM(opts ...FSMOption) *FSM {
	f := &FSM{
		current: StageCreated,
		logger:  zap.NewNop(),

		Transitions: map[Stage]map[Stage]struct{}{
			StageCreated: {
				StageUnpacking: {},
				StageFailed:    {},
			},
			StageUnpacking: {
				StageTypeDetection: {},
				StageFailed:        {},
			},
			StageTypeDetection: {
				StagePublication: {},
				StageFailed:      {},
			},
			StagePublication: {
				StageMetadataDiscovery: {},
				StageFailed:            {},
			},
			StageMetadataDiscovery: {
				StageCrosswalk: {},
				StageFailed:    {},
			},
			StageCrosswalk: {
				StageComplete: {},
				StageFailed:   {},
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FSM) Current() Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *FSM) canTransition(to Stage) bool {
	_, ok := f.Transitions[f.current][to]
	return ok
}

func (f *FSM) Transition(to Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.canTransition(to) {
		f.logger.Error("invalid stage transition",
			zap.String("from", string(f.current)),
			zap.String("to", string(to)),
		)
		return ErrInvalidTransition
	}
	previous := f.current
	f.current = to

	f.logger.Info("stage transitioned",
		zap.String("stage", string(f.current)),
		zap.String("from", string(previous)),
	)
	return nil
}
