package auth

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dbfixture"
)

//go:embed fixtures/*.yml
var fixturesFS embed.FS

var _ RepositoryManager = (*mngr)(nil)

// DefaultFixtures holds the bundled room fixture.
func DefaultFixtures() fs.FS {
	sub, err := fs.Sub(fixturesFS, "fixtures")
	if err != nil {
		return fixturesFS
	}
	return sub
}

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Rooms() Rooms
	Bookings() Bookings
	Migrate(ctx context.Context) error
	SeedRooms(ctx context.Context, fsys fs.FS, names ...string) error
	Ping(ctx context.Context) error
}

type mngr struct {
	db       *bun.DB
	users    Users
	rooms    Rooms
	bookings Bookings
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	RegisterModels(db)
	rooms := NewRoomsRepository(db)
	return &mngr{
		db:       db,
		users:    NewUsersRepository(db),
		rooms:    rooms,
		bookings: NewBookingsRepository(db, rooms),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager needs a database")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.rooms == nil {
		return errors.New("repository rooms should be initialized")
	}

	if m.bookings == nil {
		return errors.New("repository bookings should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Rooms() Rooms {
	return m.rooms
}

func (m mngr) Bookings() Bookings {
	return m.bookings
}

// Migrate creates every table that does not exist yet.
func (m mngr) Migrate(ctx context.Context) error {
	models := []any{
		(*User)(nil),
		(*Room)(nil),
		(*Booking)(nil),
		(*BookingUser)(nil),
		(*BookingRoom)(nil),
	}
	for _, model := range models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}
	return nil
}

// SeedRooms loads room fixtures unless rooms already exist. Without names it
// loads rooms.yml.
func (m mngr) SeedRooms(ctx context.Context, fsys fs.FS, names ...string) error {
	count, err := m.rooms.Count(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count rooms")
	}
	if count > 0 {
		return nil
	}

	if fsys == nil {
		fsys = DefaultFixtures()
	}
	if len(names) == 0 {
		names = []string{"rooms.yml"}
	}

	m.db.RegisterModel((*Room)(nil))
	fixture := dbfixture.New(m.db)
	if err := fixture.Load(ctx, fsys, names...); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load room fixtures")
	}
	return nil
}

func (m mngr) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}
