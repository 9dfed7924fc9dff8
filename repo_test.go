package auth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-booking-auth"
)

func seedUsers(t *testing.T, repo auth.RepositoryManager, names ...string) []*auth.User {
	t.Helper()
	out := make([]*auth.User, 0, len(names))
	for _, name := range names {
		user, err := repo.Users().Register(context.Background(), &auth.User{
			Name:         name,
			Email:        name + "@example.com",
			PasswordHash: "x",
		})
		require.NoError(t, err)
		out = append(out, user)
	}
	return out
}

func TestUsersRepository_RegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	user, err := repo.Users().Register(ctx, &auth.User{Name: " Alice ", Email: "A@B.com", PasswordHash: "x"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, auth.RoleCustomer, user.Role)
	assert.False(t, user.CreatedAt.IsZero())

	byID, err := repo.Users().GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)

	byEmail, err := repo.Users().GetByIdentifier(ctx, "A@B.COM")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byIdentifier, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, user.ID, byIdentifier.ID)

	_, err = repo.Users().GetByEmail(ctx, "ghost@b.com")
	assert.True(t, auth.HasKind(err, auth.TextCodeIdentityNotFound))

	exists, err := repo.Users().ExistsByName(ctx, "ALICE")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Users().ExistsByEmail(ctx, "nobody@b.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Users().Register(ctx, &auth.User{Name: "alice", Email: "other@b.com", PasswordHash: "x"})
	assert.True(t, auth.HasKind(err, auth.TextCodeDuplicateUser), "%v", err)

	_, err = repo.Users().Register(ctx, nil)
	assert.Error(t, err)
}

func TestUsersRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	names := []string{}
	for i := 0; i < 12; i++ {
		names = append(names, fmt.Sprintf("user%02d", i))
	}
	names = append(names, "zed")
	seedUsers(t, repo, names...)

	all, total, err := repo.Users().List(ctx, auth.UsersOrderedByName)
	require.NoError(t, err)
	require.Len(t, all, 13)
	assert.Equal(t, 13, total)
	assert.Equal(t, "user00", all[0].Name)

	page, err := repo.Users().Search(ctx, auth.UserQuery{Search: "USER", Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, auth.DefaultPageSize, page.PageSize)
	require.Len(t, page.Items, 10)
	assert.Equal(t, "user00", page.Items[0].Name)

	page, err = repo.Users().Search(ctx, auth.UserQuery{Search: "user", Page: 2, Ascending: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "user10", page.Items[0].Name)

	page, err = repo.Users().Search(ctx, auth.UserQuery{PageSize: 3, SortBy: "email", Ascending: false})
	require.NoError(t, err)
	assert.Equal(t, 13, page.Total)
	assert.Equal(t, 5, page.TotalPages)
	assert.Equal(t, "zed", page.Items[0].Name)

	page, err = repo.Users().Search(ctx, auth.UserQuery{Search: "zed@example", SortBy: "not-a-column"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	page, err = repo.Users().Search(ctx, auth.UserQuery{Search: "nothing-matches"})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.TotalPages)
	assert.NotNil(t, page.Items)
}

func TestUserQuery_Normalize(t *testing.T) {
	q := auth.UserQuery{Page: -1, PageSize: 500, Search: "  Al ", SortBy: " EMAIL "}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, auth.MaxPageSize, q.PageSize)
	assert.Equal(t, "al", q.Search)
	assert.Equal(t, "email", q.SortBy)

	q = auth.UserQuery{PageSize: 50, Limit: 5, SortBy: "password_hash"}.Normalize()
	assert.Equal(t, 5, q.PageSize)
	assert.Equal(t, "name", q.SortBy)
}

func TestRoomsRepository_SeedAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.SeedRooms(ctx, auth.DefaultFixtures()))
	require.NoError(t, repo.SeedRooms(ctx, nil), "seeding twice is a no-op")

	count, err := repo.Rooms().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	rooms, _, err := repo.Rooms().List(ctx, auth.RoomsOrderedByPrice)
	require.NoError(t, err)
	require.Len(t, rooms, 4)
	assert.Equal(t, "Single Room", rooms[0].Name)
	assert.Equal(t, "Suite", rooms[3].Name)

	found, err := repo.Rooms().GetByIDs(ctx, []uuid.UUID{rooms[0].ID, rooms[0].ID, rooms[1].ID})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	none, err := repo.Rooms().GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	missing := uuid.New()
	_, err = repo.Rooms().GetByIDs(ctx, []uuid.UUID{rooms[0].ID, missing})
	assert.True(t, auth.HasKind(err, "ROOM_NOT_FOUND"))

	require.NoError(t, repo.Ping(ctx))
}

func TestBookingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	room, err := repo.Rooms().Create(ctx, &auth.Room{Name: "Test", Price: 100, Capacity: 2})
	require.NoError(t, err)
	other, err := repo.Rooms().Create(ctx, &auth.Room{Name: "Other", Price: 50, Capacity: 1})
	require.NoError(t, err)

	users := seedUsers(t, repo, "alice", "bob")
	in := time.Date(2026, 8, 10, 15, 0, 0, 0, time.UTC)

	booking, err := repo.Bookings().Create(ctx, auth.NewBooking{
		UserID:       users[0].ID,
		RoomIDs:      []uuid.UUID{room.ID, other.ID},
		CheckInDate:  in,
		CheckOutDate: in.AddDate(0, 0, 2),
	})
	require.NoError(t, err)
	assert.InDelta(t, 300, booking.TotalPrice, 0.001)

	_, err = repo.Bookings().Create(ctx, auth.NewBooking{
		UserID:       users[0].ID,
		RoomIDs:      []uuid.UUID{room.ID},
		CheckInDate:  in,
		CheckOutDate: in,
	})
	assert.ErrorIs(t, err, auth.ErrInvalidBookingDates)

	_, err = repo.Bookings().Create(ctx, auth.NewBooking{UserID: users[0].ID, CheckInDate: in, CheckOutDate: in.AddDate(0, 0, 1)})
	assert.Error(t, err)

	_, err = repo.Bookings().Create(ctx, auth.NewBooking{
		UserID:       users[0].ID,
		RoomIDs:      []uuid.UUID{uuid.New()},
		CheckInDate:  in,
		CheckOutDate: in.AddDate(0, 0, 1),
	})
	assert.True(t, auth.HasKind(err, "ROOM_NOT_FOUND"))

	mine, err := repo.Bookings().ListForUser(ctx, users[0].ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, booking.ID, mine[0].ID)
	assert.Len(t, mine[0].Rooms, 2)

	theirs, err := repo.Bookings().ListForUser(ctx, users[1].ID)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	page, err := repo.Users().Search(ctx, auth.UserQuery{Search: "alice", IncludeBookings: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Len(t, page.Items[0].Bookings, 1)
	assert.Equal(t, booking.ID, page.Items[0].Bookings[0].ID)

	page, err = repo.Users().Search(ctx, auth.UserQuery{Search: "alice"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Empty(t, page.Items[0].Bookings, "bookings load only on request")
}

func TestRepositoryManager_RunInTx(t *testing.T) {
	repo := newTestRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := repo.RunInTx(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
