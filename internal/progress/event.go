// Package progress defines the event stream emitted by discovery runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/searchscout/searchscout/internal/pattern"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
	StageDomainStart Stage = "DOMAIN_START"
	StageDomainDone  Stage = "DOMAIN_DONE"
	StageRetry       Stage = "RETRY"
)

// Event captures a single milestone of a discovery or verification run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or per-domain milestone occurred.
	Stage Stage
	// Mode distinguishes discovery from verification runs.
	Mode pattern.Mode
	// Domain scopes per-domain events.
	Domain string
	// Outcome is set on DOMAIN_DONE events.
	Outcome pattern.Outcome
	// PatternType is set on successful DOMAIN_DONE events.
	PatternType pattern.Type
	// Confidence carries the scored confidence for successful outcomes.
	Confidence float64
	// Attempt is the 1-based attempt number for RETRY events.
	Attempt int
	// Dur captures execution latency for domain completions and run totals.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageDomainStart:
		if e.Domain == "" {
			return errors.New("domain start requires domain")
		}
	case StageDomainDone:
		if e.Domain == "" {
			return errors.New("domain done requires domain")
		}
		if e.Outcome == "" {
			return errors.New("domain done requires outcome")
		}
	case StageRetry:
		if e.Domain == "" {
			return errors.New("retry requires domain")
		}
		if e.Attempt < 1 {
			return errors.New("retry requires attempt >= 1")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
