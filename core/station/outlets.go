package station

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/smartcharging/core/model"
)

var (
	ErrUnknownOutlet = errors.New("unknown outlet")
	ErrSessionActive = errors.New("session already active")
	ErrNoSession     = errors.New("no active session")
)

// Session is a charging transaction on an outlet.
type Session struct {
	EvseID        int       `json:"evseId"`
	TransactionID string    `json:"transactionId"`
	Start         time.Time `json:"start"`
}

type outlet struct {
	phase      model.PhaseType
	connectors int
	session    *Session
}

// Outlets tracks the configured outlets and their sessions.
type Outlets struct {
	mu      sync.RWMutex
	outlets map[int]*outlet
}

// NewOutlets creates a tracker for the configured outlets.
func NewOutlets(cfgs []OutletConfig) *Outlets {
	o := &Outlets{outlets: make(map[int]*outlet, len(cfgs))}
	for _, c := range cfgs {
		o.outlets[c.ID] = &outlet{phase: model.PhaseType(c.PhaseType), connectors: c.Connectors}
	}
	return o
}

// StartSession records a transaction. It fails when a session is running.
func (o *Outlets) StartSession(evseID int, transactionID string, start time.Time) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out, ok := o.outlets[evseID]
	if !ok {
		return Session{}, fmt.Errorf("evse %d: %w", evseID, ErrUnknownOutlet)
	}
	if out.session != nil {
		return Session{}, fmt.Errorf("evse %d: %w", evseID, ErrSessionActive)
	}
	s := Session{EvseID: evseID, TransactionID: transactionID, Start: start.UTC()}
	out.session = &s
	return s, nil
}

// StopSession ends the running transaction and returns it.
func (o *Outlets) StopSession(evseID int) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out, ok := o.outlets[evseID]
	if !ok {
		return Session{}, fmt.Errorf("evse %d: %w", evseID, ErrUnknownOutlet)
	}
	if out.session == nil {
		return Session{}, fmt.Errorf("evse %d: %w", evseID, ErrNoSession)
	}
	s := *out.session
	out.session = nil
	return s, nil
}

// Sessions lists the running sessions ordered by outlet.
func (o *Outlets) Sessions() []Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var res []Session
	for _, out := range o.outlets {
		if out.session != nil {
			res = append(res, *out.session)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EvseID < res[j].EvseID })
	return res
}

func (o *Outlets) session(evseID int) (Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if out, ok := o.outlets[evseID]; ok && out.session != nil {
		return *out.session, true
	}
	return Session{}, false
}

func (o *Outlets) NumberOfOutlets() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.outlets)
}

func (o *Outlets) HasActiveTransaction(evseID int) bool {
	_, ok := o.session(evseID)
	return ok
}

func (o *Outlets) TransactionID(evseID int) (string, bool) {
	s, ok := o.session(evseID)
	if !ok || s.TransactionID == "" {
		return "", false
	}
	return s.TransactionID, true
}

func (o *Outlets) SessionStart(evseID int) (time.Time, bool) {
	s, ok := o.session(evseID)
	return s.Start, ok
}

func (o *Outlets) PhaseType(evseID int) model.PhaseType {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if out, ok := o.outlets[evseID]; ok {
		return out.phase
	}
	return model.PhaseAC
}

func (o *Outlets) NumberOfConnectors(evseID int) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if out, ok := o.outlets[evseID]; ok {
		return out.connectors
	}
	return 0
}
