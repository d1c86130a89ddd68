package storage

import (
	"fmt"

	"github.com/navalha-app/navalha/libs/db"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
)

// invalid_text_representation: a malformed uuid can never match a row.
const codeInvalidText = "22P02"

// IsConflict reports whether err is the appointments_no_overlap exclusion
// constraint firing.
func IsConflict(err error) bool {
	return db.HasCode(err, db.CodeExclusionViolation)
}

// IsNotFound also covers a foreign key pointing at a missing shop.
func IsNotFound(err error) bool {
	return db.IsNotFound(err) || db.HasCode(err, codeInvalidText) || db.HasCode(err, db.CodeForeignKeyViolation)
}

// mapError translates driver errors into the booking package's sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsConflict(err):
		return fmt.Errorf("%w: %w", booking.ErrSlotTaken, err)
	case IsNotFound(err):
		return booking.ErrNotFound
	}
	return err
}
