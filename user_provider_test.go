package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-booking-auth"
)

func TestUserProvider_VerifyIdentity(t *testing.T) {
	fastHashing(t)
	ctx := context.Background()

	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	user := &auth.User{ID: uuid.New(), Name: "alice", Email: "a@b.com", PasswordHash: hash, Role: auth.RoleCustomer}

	store := &MockUserStore{}
	store.On("GetByEmail", ctx, "a@b.com").Return(user, nil)
	store.On("GetByEmail", ctx, "ghost@b.com").Return(nil, auth.ErrIdentityNotFound)
	store.On("GetByEmail", ctx, "down@b.com").Return(nil, errors.New("db down"))

	provider := auth.NewUserProvider(store).WithLogger(silentLogger())

	identity, err := provider.VerifyIdentity(ctx, "  A@B.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), identity.ID())
	assert.Equal(t, "alice", identity.Name())
	assert.Equal(t, "customer", identity.Role())

	_, err = provider.VerifyIdentity(ctx, "a@b.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

	_, err = provider.VerifyIdentity(ctx, "ghost@b.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword, "unknown emails look like wrong passwords")

	_, err = provider.VerifyIdentity(ctx, "down@b.com", "secret1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

	store.AssertExpectations(t)
}

func TestUserProvider_RejectsInvalidRole(t *testing.T) {
	fastHashing(t)
	ctx := context.Background()

	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	store := &MockUserStore{}
	store.On("GetByIdentifier", ctx, "odd").Return(&auth.User{ID: uuid.New(), PasswordHash: hash, Role: "owner"}, nil)

	_, err = auth.NewUserProvider(store).WithLogger(silentLogger()).FindIdentityByIdentifier(ctx, "odd")
	assert.True(t, auth.HasKind(err, "INVALID_ROLE"))
}

func TestUserProvider_RegisterUser(t *testing.T) {
	fastHashing(t)
	ctx := context.Background()

	store := &MockUserStore{}
	store.On("ExistsByName", ctx, "alice").Return(false, nil)
	store.On("ExistsByEmail", ctx, "a@b.com").Return(false, nil)
	store.On("Register", ctx, mock.MatchedBy(func(u *auth.User) bool {
		return u.Name == "alice" && u.Email == "a@b.com" && u.Role == auth.RoleCustomer &&
			auth.ComparePasswordAndHash("secret1", u.PasswordHash) == nil
	})).Return(func(_ context.Context, u *auth.User) *auth.User {
		u.ID = uuid.New()
		return u
	}, nil)

	user, err := auth.NewUserProvider(store).WithLogger(silentLogger()).RegisterUser(ctx, " Alice ", "A@B.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Name)
	assert.NotEqual(t, uuid.Nil, user.ID)
	store.AssertExpectations(t)
}

func TestUserProvider_RegisterDuplicates(t *testing.T) {
	ctx := context.Background()

	store := &MockUserStore{}
	store.On("ExistsByName", ctx, "alice").Return(true, nil)
	store.On("ExistsByName", ctx, "bob").Return(false, nil)
	store.On("ExistsByEmail", ctx, "a@b.com").Return(true, nil)

	provider := auth.NewUserProvider(store).WithLogger(silentLogger())

	_, err := provider.RegisterUser(ctx, "Alice", "new@b.com", "secret1")
	assert.True(t, auth.HasKind(err, auth.TextCodeDuplicateUser))

	_, err = provider.RegisterUser(ctx, "bob", "a@b.com", "secret1")
	assert.True(t, auth.HasKind(err, auth.TextCodeDuplicateUser))

	store.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}
