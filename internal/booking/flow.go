// Package booking implements the multi-step booking flow state machine:
// service selection, date, time, customer form, confirmation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"agenda/internal/conflict"
	"agenda/internal/model"
)

// Step identifies a stage of the booking flow.
type Step string

const (
	StepServiceSelection Step = "service-selection"
	StepDateSelection    Step = "date-selection"
	StepTimeSelection    Step = "time-selection"
	StepCustomerForm     Step = "customer-form"
	StepConfirmation     Step = "confirmation"
)

// ErrAvailabilityUnknown is returned when slot availability could not be
// verified; the flow refuses to advance or submit while in this condition.
var ErrAvailabilityUnknown = errors.New("could not verify availability")

// ErrStepIncomplete is returned when a forward transition is attempted
// before the prior step has a recorded selection.
var ErrStepIncomplete = errors.New("previous step not completed")

// FSM holds the allowed transitions between steps. Forward moves are strictly
// linear; backward moves are always permitted from any non-terminal step.
type FSM struct {
	transitions map[Step][]Step
}

// NewFSM creates the booking flow transition table.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[Step][]Step{
			StepServiceSelection: {StepDateSelection},
			StepDateSelection:    {StepTimeSelection, StepServiceSelection},
			StepTimeSelection:    {StepCustomerForm, StepDateSelection, StepServiceSelection},
			StepCustomerForm:     {StepConfirmation, StepTimeSelection, StepDateSelection, StepServiceSelection},
			StepConfirmation:     {},
		},
	}
}

// CanTransition checks whether moving from one step to another is allowed.
func (f *FSM) CanTransition(from, to Step) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Customer holds the contact fields collected at the customer-form step.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Complete reports whether the form has the required fields.
func (c Customer) Complete() bool {
	return c.Name != "" && (c.Email != "" || c.Phone != "")
}

// CreateRequest is the plain booking-creation request handed to the external
// appointment collaborator on confirmation.
type CreateRequest struct {
	StudioID        string
	ServiceIDs      []string
	ServiceName     string
	DurationMinutes int
	PriceCents      int64
	Date            string
	Time            string
	Customer        Customer
}

// AppointmentCreator is the external collaborator that persists the booking.
type AppointmentCreator interface {
	CreateAppointment(ctx context.Context, req CreateRequest) (*model.Booking, error)
}

// AvailabilityChecker verifies that a slot can hold a service of the given
// duration. Implementations recompute from live bookings and blocks.
type AvailabilityChecker interface {
	SlotAvailable(ctx context.Context, studioID, date, hhmm string, durationMinutes int) (bool, error)
}

// Session is one user's progress through the booking flow. All state is
// transient; nothing is persisted until confirmation succeeds.
type Session struct {
	ID       string
	StudioID string

	mu        sync.Mutex
	step      Step
	services  []model.Service
	date      string
	timeHHMM  string
	customer  Customer
	lastError string
	booking   *model.Booking

	startedAt time.Time
	updatedAt time.Time
}

// Flow drives booking sessions through the state machine.
type Flow struct {
	fsm      *FSM
	checker  AvailabilityChecker
	creator  AppointmentCreator
	sessions *SessionStore
}

// NewFlow wires the flow with its collaborators.
func NewFlow(checker AvailabilityChecker, creator AppointmentCreator, sessionTimeout time.Duration) *Flow {
	return &Flow{
		fsm:      NewFSM(),
		checker:  checker,
		creator:  creator,
		sessions: NewSessionStore(sessionTimeout),
	}
}

// Sessions exposes the underlying session store.
func (f *Flow) Sessions() *SessionStore {
	return f.sessions
}

// Start opens a new session for a studio.
func (f *Flow) Start(studioID string) *Session {
	return f.sessions.Create(studioID)
}

// transitionLocked moves the session to the target step after consulting the
// transition table. Staying on the current step is not a transition and is
// always permitted. Caller holds s.mu.
func (f *Flow) transitionLocked(s *Session, to Step) error {
	if s.step == to {
		return nil
	}
	if !f.fsm.CanTransition(s.step, to) {
		return fmt.Errorf("%w: cannot move from %s to %s", ErrStepIncomplete, s.step, to)
	}
	s.step = to
	return nil
}

// Step returns the session's current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Selection returns a copy of the selected services.
func (s *Session) Selection() []model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Service(nil), s.services...)
}

// DateTime returns the chosen date and time, either of which may be empty.
func (s *Session) DateTime() (date, hhmm string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date, s.timeHHMM
}

// LastError returns the most recent user-facing error, if any.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Booking returns the created booking after a successful confirmation.
func (s *Session) Booking() *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.booking
}

// totalDurationLocked sums selected service durations. Caller holds s.mu.
func (s *Session) totalDurationLocked() int {
	total := 0
	for _, svc := range s.services {
		total += svc.DurationMinutes
	}
	return total
}

// ToggleService adds or removes a service from the selection. Adding runs the
// incremental conflict check; a rejection leaves the selection untouched and
// returns the reason. Any change to the selection re-validates a previously
// chosen date/time against the new aggregated duration and discards them when
// they no longer fit, stepping the session back accordingly.
func (f *Flow) ToggleService(ctx context.Context, s *Session, svc model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == StepConfirmation {
		return fmt.Errorf("booking already confirmed")
	}

	idx := -1
	for i, existing := range s.services {
		if existing.ID == svc.ID {
			idx = i
			break
		}
	}

	if idx >= 0 {
		s.services = append(s.services[:idx], s.services[idx+1:]...)
	} else {
		if cerr := conflict.Check(svc, s.services); cerr != nil {
			s.lastError = cerr.Reason
			return cerr
		}
		s.services = append(s.services, svc)
	}
	s.lastError = ""
	s.touchLocked()

	if len(s.services) == 0 {
		// Nothing selected: everything downstream is moot.
		s.date, s.timeHHMM = "", ""
		return f.transitionLocked(s, StepServiceSelection)
	}

	if s.step == StepServiceSelection {
		if err := f.transitionLocked(s, StepDateSelection); err != nil {
			return err
		}
	}

	return f.revalidateLocked(ctx, s)
}

// revalidateLocked re-checks a chosen time against the current aggregated
// duration, discarding state that no longer holds. Caller holds s.mu.
func (f *Flow) revalidateLocked(ctx context.Context, s *Session) error {
	if s.date == "" || s.timeHHMM == "" {
		return nil
	}

	ok, err := f.checker.SlotAvailable(ctx, s.StudioID, s.date, s.timeHHMM, s.totalDurationLocked())
	if err != nil {
		// Unknown availability: drop the time rather than trust a stale one.
		s.timeHHMM = ""
		if terr := f.transitionLocked(s, StepTimeSelection); terr != nil {
			return terr
		}
		s.lastError = ErrAvailabilityUnknown.Error()
		return ErrAvailabilityUnknown
	}
	if !ok {
		s.timeHHMM = ""
		if terr := f.transitionLocked(s, StepTimeSelection); terr != nil {
			return terr
		}
		s.lastError = "selected time no longer fits the chosen services"
	}
	return nil
}

// ChooseDate records the date; gated on a non-empty service selection.
func (f *Flow) ChooseDate(s *Session, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.services) == 0 {
		return fmt.Errorf("%w: select a service first", ErrStepIncomplete)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}

	if err := f.transitionLocked(s, StepTimeSelection); err != nil {
		return err
	}
	if s.date != date {
		// Time depends on the date; a new date invalidates it.
		s.timeHHMM = ""
	}
	s.date = date
	s.lastError = ""
	s.touchLocked()
	return nil
}

// ChooseTime records the start time after verifying it is still available for
// the aggregated duration; gated on a chosen date.
func (f *Flow) ChooseTime(ctx context.Context, s *Session, hhmm string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.date == "" {
		return fmt.Errorf("%w: choose a date first", ErrStepIncomplete)
	}

	ok, err := f.checker.SlotAvailable(ctx, s.StudioID, s.date, hhmm, s.totalDurationLocked())
	if err != nil {
		s.lastError = ErrAvailabilityUnknown.Error()
		return ErrAvailabilityUnknown
	}
	if !ok {
		s.lastError = fmt.Sprintf("time %s is not available", hhmm)
		return fmt.Errorf("time %s is not available", hhmm)
	}

	if terr := f.transitionLocked(s, StepCustomerForm); terr != nil {
		return terr
	}
	s.timeHHMM = hhmm
	s.lastError = ""
	s.touchLocked()
	return nil
}

// SetCustomer records the contact form; gated on a chosen time.
func (f *Flow) SetCustomer(s *Session, c Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeHHMM == "" {
		return fmt.Errorf("%w: choose a time first", ErrStepIncomplete)
	}
	if !c.Complete() {
		return fmt.Errorf("customer name and at least one contact are required")
	}

	s.customer = c
	s.lastError = ""
	s.touchLocked()
	return nil
}

// Back moves one step backward. Later-step input is kept so the user can move
// back and forth without retyping; re-validation on service changes is what
// discards stale selections, not navigation.
func (f *Flow) Back(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var to Step
	switch s.step {
	case StepDateSelection:
		to = StepServiceSelection
	case StepTimeSelection:
		to = StepDateSelection
	case StepCustomerForm:
		to = StepTimeSelection
	default:
		return
	}
	if err := f.transitionLocked(s, to); err != nil {
		return
	}
	s.touchLocked()
}

// Confirm submits the booking to the external appointment collaborator. It is
// gated on every prior step being complete. On success the session reaches
// the terminal confirmation step; on failure control stays at customer-form
// with the error surfaced and all state preserved for resubmission.
func (f *Flow) Confirm(ctx context.Context, s *Session) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == StepConfirmation {
		return s.booking, nil
	}
	if len(s.services) == 0 || s.date == "" || s.timeHHMM == "" || !s.customer.Complete() {
		return nil, fmt.Errorf("%w: flow is missing selections", ErrStepIncomplete)
	}
	if !f.fsm.CanTransition(s.step, StepConfirmation) {
		return nil, fmt.Errorf("%w: confirmation is only reachable from %s", ErrStepIncomplete, StepCustomerForm)
	}

	if cerr := conflict.ValidateSet(s.services); cerr != nil {
		s.lastError = cerr.Reason
		return nil, cerr
	}

	ids := make([]string, 0, len(s.services))
	names := ""
	for i, svc := range s.services {
		ids = append(ids, svc.ID)
		if i > 0 {
			names += " + "
		}
		names += svc.Name
	}

	req := CreateRequest{
		StudioID:        s.StudioID,
		ServiceIDs:      ids,
		ServiceName:     names,
		DurationMinutes: s.totalDurationLocked(),
		PriceCents:      conflict.TotalPriceCents(s.services),
		Date:            s.date,
		Time:            s.timeHHMM,
		Customer:        s.customer,
	}

	created, err := f.creator.CreateAppointment(ctx, req)
	if err != nil {
		s.lastError = err.Error()
		return nil, err
	}

	if err := f.transitionLocked(s, StepConfirmation); err != nil {
		return nil, err
	}
	s.booking = created
	s.lastError = ""
	s.touchLocked()
	return created, nil
}

func (s *Session) touchLocked() {
	s.updatedAt = time.Now()
}

// SessionStore manages booking flow sessions keyed by session ID.
type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a store with the given idle timeout.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// Create opens a new session for a studio.
func (ss *SessionStore) Create(studioID string) *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		StudioID:  studioID,
		step:      StepServiceSelection,
		startedAt: now,
		updatedAt: now,
	}

	ss.mu.Lock()
	ss.sessions[session.ID] = session
	ss.mu.Unlock()
	return session
}

// Get returns a session by ID, or nil if absent or expired.
func (ss *SessionStore) Get(id string) *Session {
	ss.mu.RLock()
	session := ss.sessions[id]
	ss.mu.RUnlock()

	if session == nil {
		return nil
	}
	session.mu.Lock()
	expired := time.Since(session.updatedAt) > ss.timeout
	session.mu.Unlock()
	if expired {
		ss.Delete(id)
		return nil
	}
	return session
}

// Delete removes a session.
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	delete(ss.sessions, id)
	ss.mu.Unlock()
}

// Cleanup removes expired sessions and reports how many were dropped.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, session := range ss.sessions {
		session.mu.Lock()
		expired := time.Since(session.updatedAt) > ss.timeout
		session.mu.Unlock()
		if expired {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}
