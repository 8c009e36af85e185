package domain

import (
	"fmt"
	"time"
)

// ConnectionPhase is the lifecycle phase of the feed connection
type ConnectionPhase string

const (
	PhaseIdle         ConnectionPhase = "idle"
	PhaseConnecting   ConnectionPhase = "connecting"
	PhaseOpen         ConnectionPhase = "open"
	PhaseClosed       ConnectionPhase = "closed"
	PhaseReconnecting ConnectionPhase = "reconnecting"
)

// ConnectionState is a snapshot of the supervisor state machine
type ConnectionState struct {
	Phase      ConnectionPhase `json:"phase"`
	Reason     string          `json:"reason,omitempty"`      // set for Closed
	RetryAfter time.Duration   `json:"retryAfter,omitempty"` // set for Reconnecting
	At         time.Time       `json:"at"`
}

func (s ConnectionState) String() string {
	switch s.Phase {
	case PhaseClosed:
		return fmt.Sprintf("closed(%s)", s.Reason)
	case PhaseReconnecting:
		return fmt.Sprintf("reconnecting(%dms)", s.RetryAfter.Milliseconds())
	}
	return string(s.Phase)
}
