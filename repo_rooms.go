package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrRoomNotFound = errors.New("room not found", errors.CategoryNotFound).
	WithTextCode("ROOM_NOT_FOUND").
	WithCode(errors.CodeNotFound)

// Rooms is the room repository.
type Rooms interface {
	repository.Repository[*Room]

	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Room, error)
	GetByIDsTx(ctx context.Context, tx bun.IDB, ids []uuid.UUID) ([]*Room, error)
}

type rooms struct {
	repository.Repository[*Room]
}

var _ Rooms = (*rooms)(nil)

// NewRoomsRepository returns a bun backed Rooms repository.
func NewRoomsRepository(db *bun.DB) Rooms {
	return &rooms{
		Repository: repository.NewRepository[*Room](db, repository.ModelHandlers[*Room]{
			NewRecord: func() *Room { return &Room{} },
			GetID: func(r *Room) uuid.UUID {
				if r == nil {
					return uuid.Nil
				}
				return r.ID
			},
			SetID: func(r *Room, id uuid.UUID) {
				if r != nil {
					r.ID = id
				}
			},
			GetIdentifier: func() string {
				return "name"
			},
		}),
	}
}

// RoomsOrderedByPrice lists the cheapest room first, ties by name.
func RoomsOrderedByPrice(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("rm.price ASC", "rm.name ASC")
}

func (r *rooms) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Room, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []*Room{}, nil
	}

	records, _, err := r.Repository.List(ctx, roomsWithIDs(unique))
	return checkRooms(records, unique, err)
}

// GetByIDsTx fails with ErrRoomNotFound unless every id resolves.
func (r *rooms) GetByIDsTx(ctx context.Context, tx bun.IDB, ids []uuid.UUID) ([]*Room, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []*Room{}, nil
	}

	records, _, err := r.Repository.ListTx(ctx, tx, roomsWithIDs(unique))
	return checkRooms(records, unique, err)
}

func roomsWithIDs(ids []uuid.UUID) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("rm.id IN (?)", bun.In(ids))
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique
}

func checkRooms(records []*Room, want []uuid.UUID, err error) ([]*Room, error) {
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load rooms")
	}

	if len(records) == len(want) {
		return records, nil
	}

	found := map[uuid.UUID]bool{}
	for _, rec := range records {
		found[rec.ID] = true
	}
	missing := []string{}
	for _, id := range want {
		if !found[id] {
			missing = append(missing, id.String())
		}
	}
	return nil, ErrRoomNotFound.Clone().WithMetadata(map[string]any{"missing": missing})
}
