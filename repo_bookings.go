package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrInvalidBookingDates = errors.New("check out must be at least one night after check in", errors.CategoryValidation).
	WithTextCode("INVALID_BOOKING_DATES").
	WithCode(errors.CodeBadRequest)

// NewBooking describes a booking request for one user.
type NewBooking struct {
	UserID       uuid.UUID
	RoomIDs      []uuid.UUID
	CheckInDate  time.Time
	CheckOutDate time.Time
}

// Bookings is the booking repository.
type Bookings interface {
	Create(ctx context.Context, req NewBooking) (*Booking, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Booking, error)
}

type bookings struct {
	db    *bun.DB
	rooms Rooms
}

// NewBookingsRepository returns a bun backed Bookings repository.
func NewBookingsRepository(db *bun.DB, rooms Rooms) Bookings {
	return &bookings{db: db, rooms: rooms}
}

// Create stores the booking and its join rows in one transaction. The total
// price is computed from the rooms as they are at booking time.
func (b *bookings) Create(ctx context.Context, req NewBooking) (*Booking, error) {
	if len(req.RoomIDs) == 0 {
		return nil, errors.New("a booking needs at least one room", errors.CategoryValidation).
			WithCode(errors.CodeBadRequest)
	}

	record := &Booking{
		CheckInDate:  req.CheckInDate.UTC(),
		CheckOutDate: req.CheckOutDate.UTC(),
	}

	if record.Nights() < 1 {
		return nil, ErrInvalidBookingDates
	}

	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rooms, err := b.rooms.GetByIDsTx(ctx, tx, req.RoomIDs)
		if err != nil {
			return err
		}

		record.Rooms = rooms
		record.TotalPrice = record.CalculateTotalPrice()

		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to insert booking")
		}

		link := &BookingUser{BookingID: record.ID, UserID: req.UserID}
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to link booking user")
		}

		joins := make([]*BookingRoom, 0, len(rooms))
		for _, room := range rooms {
			joins = append(joins, &BookingRoom{BookingID: record.ID, RoomID: room.ID})
		}
		if _, err := tx.NewInsert().Model(&joins).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to link booking rooms")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (b *bookings) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Booking, error) {
	records := []*Booking{}
	err := b.db.NewSelect().
		Model(&records).
		Join("JOIN booking_users AS bu ON bu.booking_id = bk.id").
		Where("bu.user_id = ?", userID).
		Relation("Rooms").
		Order("bk.check_in_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list bookings")
	}
	return records, nil
}
