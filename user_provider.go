package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// AccountRegistrerer is the interface we need to handle new user registrations
type AccountRegistrerer interface {
	RegisterUser(ctx context.Context, name, email, password string) (*User, error)
}

// UserStore is the subset of Users the provider needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, user *User) (*User, error)
}

// UserProvider handles users
type UserProvider struct {
	store     UserStore
	Validator func(*User) error
	logger    Logger

	dummyOnce sync.Once
	dummyHash string
}

var (
	_ IdentityProvider   = (*UserProvider)(nil)
	_ AccountRegistrerer = (*UserProvider)(nil)
)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserStore) *UserProvider {
	return &UserProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity finds the user by email and compares the password. Unknown
// emails and wrong passwords return the same error.
func (u *UserProvider) VerifyIdentity(ctx context.Context, email, password string) (Identity, error) {
	user, err := u.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if HasKind(err, TextCodeIdentityNotFound) {
			// burn a comparison so unknown emails cost the same as bad passwords
			_ = ComparePasswordAndHash(password, u.fallbackHash())
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if HasKind(err, TextCodeMismatchedPassword) {
			return nil, ErrMismatchedHashAndPassword
		}
		u.logger.Error("password comparison failed", "user_id", user.ID.String(), "error", err)
		return nil, ErrMismatchedHashAndPassword
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return NewIdentityFromUser(user), nil
}

func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, ErrIdentityNotFound
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return NewIdentityFromUser(user), nil
}

// RegisterUser lowercases name and email, rejects duplicates and stores a
// bcrypt hash of the password.
func (u *UserProvider) RegisterUser(ctx context.Context, name, email, password string) (*User, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	email = strings.ToLower(strings.TrimSpace(email))

	taken, err := u.store.ExistsByName(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check user name")
	}
	if taken {
		return nil, ErrDuplicateUser.Clone().WithMetadata(map[string]any{"field": "name"})
	}

	taken, err = u.store.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check user email")
	}
	if taken {
		return nil, ErrDuplicateUser.Clone().WithMetadata(map[string]any{"field": "email"})
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := u.store.Register(ctx, &User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleCustomer,
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("user registered", "user_id", user.ID.String())

	return user, nil
}

func (u *UserProvider) fallbackHash() string {
	u.dummyOnce.Do(func() {
		u.dummyHash = RandomPasswordHash()
	})
	return u.dummyHash
}

func defaultValidator(u *User) error {
	if u.Role.IsValid() {
		return nil
	}
	return errors.New("user has an unknown or invalid role", errors.CategoryAuth).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": u.Role, "user_id": u.ID.String()})
}
