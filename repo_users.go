package auth

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// sortable columns accepted by UserQuery.SortBy
var userSortColumns = map[string]string{
	"name":       "usr.name",
	"email":      "usr.email",
	"created_at": "usr.created_at",
	"createdat":  "usr.created_at",
	"role":       "usr.user_role",
}

// UserQuery holds the paging, filtering and sorting options of a user search.
type UserQuery struct {
	Page            int    `json:"page" query:"page"`
	PageSize        int    `json:"pageSize" query:"pageSize"`
	Search          string `json:"search" query:"search"`
	IncludeBookings bool   `json:"includeBookings" query:"includeBookings"`
	// Limit caps PageSize when positive.
	Limit     int    `json:"limit" query:"limit"`
	SortBy    string `json:"sortBy" query:"sortBy"`
	Ascending bool   `json:"ascending" query:"ascending"`
}

// Normalize applies defaults and bounds.
func (q UserQuery) Normalize() UserQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.Limit > 0 && q.PageSize > q.Limit {
		q.PageSize = q.Limit
	}
	q.Search = strings.ToLower(strings.TrimSpace(q.Search))
	q.SortBy = strings.ToLower(strings.TrimSpace(q.SortBy))
	if _, ok := userSortColumns[q.SortBy]; !ok {
		q.SortBy = "name"
	}
	return q
}

func (q UserQuery) offset() int {
	return (q.Page - 1) * q.PageSize
}

// UserPage is one page of a user search.
type UserPage struct {
	Items      []*User `json:"items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	Total      int     `json:"total"`
	TotalPages int     `json:"totalPages"`
}

// Users is the user repository.
type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Search(ctx context.Context, query UserQuery) (*UserPage, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository returns a bun backed Users repository.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

// UsersOrderedByName sorts a user listing alphabetically.
func UsersOrderedByName(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("usr.name ASC")
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, errors.New("user must not be nil", errors.CategoryBadInput)
	}
	prepareUserDefaults(user)

	taken, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("usr.name = ?", user.Name).
		WhereOr("usr.email = ?", user.Email).
		Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check user uniqueness")
	}
	if taken {
		return nil, ErrDuplicateUser.Clone()
	}

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, wrapKind(ErrDuplicateUser, err)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to insert user")
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	record, err := a.Repository.GetByIdentifier(ctx, email)
	if err != nil {
		return nil, notFound(err, "email", email)
	}
	return record, nil
}

// GetByIdentifier resolves a uuid or an email address.
func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if id, err := uuid.Parse(identifier); err == nil {
		record, err := a.Repository.GetByID(ctx, id.String(), criteria...)
		if err != nil {
			return nil, notFound(err, "id", id.String())
		}
		return record, nil
	}

	email := strings.ToLower(identifier)
	record, err := a.Repository.GetByIdentifier(ctx, email, criteria...)
	if err != nil {
		return nil, notFound(err, "email", email)
	}
	return record, nil
}

func (a *users) ExistsByName(ctx context.Context, name string) (bool, error) {
	return a.db.NewSelect().
		Model((*User)(nil)).
		Where("usr.name = ?", strings.ToLower(strings.TrimSpace(name))).
		Exists(ctx)
}

func (a *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return a.db.NewSelect().
		Model((*User)(nil)).
		Where("usr.email = ?", strings.ToLower(strings.TrimSpace(email))).
		Exists(ctx)
}

// Search pages through users matching query.Search on name or email.
func (a *users) Search(ctx context.Context, query UserQuery) (*UserPage, error) {
	query = query.Normalize()

	records, total, err := a.Repository.List(ctx, query.criteria()...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to search users")
	}

	if records == nil {
		records = []*User{}
	}

	pages := 0
	if total > 0 {
		pages = (total + query.PageSize - 1) / query.PageSize
	}

	return &UserPage{
		Items:      records,
		Page:       query.Page,
		PageSize:   query.PageSize,
		Total:      total,
		TotalPages: pages,
	}, nil
}

// criteria expects a normalized query.
func (q UserQuery) criteria() []repository.SelectCriteria {
	criteria := []repository.SelectCriteria{}

	if q.Search != "" {
		like := "%" + q.Search + "%"
		criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
				return sq.Where("usr.name LIKE ?", like).WhereOr("usr.email LIKE ?", like)
			})
		})
	}

	if q.IncludeBookings {
		criteria = append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Relation("Bookings")
		})
	}

	direction := "DESC"
	if q.Ascending {
		direction = "ASC"
	}
	column := userSortColumns[q.SortBy]

	return append(criteria, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.
			OrderExpr("? "+direction, bun.Ident(column)).
			Limit(q.PageSize).
			Offset(q.offset())
	})
}

func prepareUserDefaults(user *User) {
	user.Name = strings.ToLower(strings.TrimSpace(user.Name))
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = RoleCustomer
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
}

func notFound(err error, field, value string) error {
	if repository.IsRecordNotFound(err) || stderrors.Is(err, sql.ErrNoRows) {
		rich := ErrIdentityNotFound.Clone()
		rich.Source = err
		rich.WithMetadata(map[string]any{field: value})
		return rich
	}
	return errors.Wrap(err, errors.CategoryInternal, "failed to load user")
}

func isUniqueViolation(err error) bool {
	for ; err != nil; err = stderrors.Unwrap(err) {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
			return true
		}
	}
	return false
}
