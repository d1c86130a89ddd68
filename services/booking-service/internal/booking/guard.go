package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/metrics"
)

// GuardState tracks one commit attempt: Proposed -> Revalidated -> Committed,
// or Rejected from either of the first two.
type GuardState string

const (
	StateProposed    GuardState = "proposed"
	StateRevalidated GuardState = "revalidated"
	StateCommitted   GuardState = "committed"
	StateRejected    GuardState = "rejected"
)

// Attempt records how far a commit got. Appointment is set only when
// committed; Conflicts only when rejected by the re-check.
type Attempt struct {
	State       GuardState
	Stage       Stage
	Proposal    availability.Proposal
	Conflicts   []availability.ExistingBooking
	Appointment Appointment
}

// Guard re-validates a proposed booking against fresh state right before the
// write, so a slot read minutes earlier is never trusted. The store's atomic
// insert still decides races between two guards that both pass.
type Guard struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.BookingMetrics
}

func NewGuard(store Store, logger *slog.Logger, m *metrics.BookingMetrics) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, logger: logger, metrics: m}
}

// Commit runs the guard for appt. A rejection is returned as *ConflictError;
// other errors leave the attempt in its last reached state.
func (g *Guard) Commit(ctx context.Context, appt Appointment) (Attempt, error) {
	att := Attempt{State: StateProposed, Proposal: appt.Proposal()}
	if err := att.Proposal.Validate(); err != nil {
		return att, normalizeInput(err)
	}

	current, err := g.store.ListOccupying(ctx, appt.ShopID, appt.ProfessionalID, appt.Date)
	if err != nil {
		return att, fmt.Errorf("revalidate: %w", err)
	}
	if conflicts := availability.Conflicts(att.Proposal, current); len(conflicts) > 0 {
		att.State = StateRejected
		att.Stage = StageRevalidate
		att.Conflicts = conflicts
		g.reject(att)
		return att, g.conflictError(att, nil)
	}
	att.State = StateRevalidated

	created, err := g.store.Insert(ctx, appt)
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			att.State = StateRejected
			att.Stage = StagePersist
			g.reject(att)
			return att, g.conflictError(att, err)
		}
		return att, fmt.Errorf("persist: %w", err)
	}

	att.State = StateCommitted
	att.Stage = StagePersist
	att.Appointment = created
	g.metrics.ObserveGuardOutcome(string(StateCommitted), string(StagePersist))
	return att, nil
}

func (g *Guard) reject(att Attempt) {
	g.metrics.ObserveGuardOutcome(string(StateRejected), string(att.Stage))
	g.logger.Info("booking rejected by conflict guard",
		"stage", att.Stage,
		"professional_id", att.Proposal.ProfessionalID,
		"date", att.Proposal.Date.String(),
		"start_time", att.Proposal.StartTime.String(),
		"conflicts", len(att.Conflicts),
	)
}

func (g *Guard) conflictError(att Attempt, cause error) *ConflictError {
	// the bare sentinel adds nothing to the message
	if cause == ErrSlotTaken {
		cause = nil
	}
	return &ConflictError{
		Stage:          att.Stage,
		ProfessionalID: att.Proposal.ProfessionalID,
		Date:           att.Proposal.Date,
		StartTime:      att.Proposal.StartTime,
		Conflicting:    att.Conflicts,
		Err:            cause,
	}
}
