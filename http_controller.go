package auth

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// Controller serves the booking API.
type Controller struct {
	Auther     *Auther
	Registrar  AccountRegistrerer
	Repo       RepositoryManager
	Logger     Logger
	ContextKey string
	Debug      bool
}

// RegisterRequest payload
type RegisterRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token string `json:"token"`
}

// BookingRequest payload
type BookingRequest struct {
	RoomIDs      []string  `json:"roomIds"`
	CheckInDate  time.Time `json:"checkInDate"`
	CheckOutDate time.Time `json:"checkOutDate"`
}

// Validate will run validation rules
func (r BookingRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RoomIDs, validation.Required, validation.By(validRoomIDs)),
		validation.Field(&r.CheckInDate, validation.Required),
		validation.Field(&r.CheckOutDate, validation.Required),
	)
}

func validRoomIDs(value interface{}) error {
	ids, _ := value.([]string)
	for _, id := range ids {
		if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
			return errors.New("must only contain room ids")
		}
	}
	return nil
}

// StatusResponse is returned by the status endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrInvalidBody is returned when a request body cannot be decoded.
var ErrInvalidBody = goerrors.New("invalid request body", goerrors.CategoryBadInput).
	WithTextCode("INVALID_BODY").
	WithCode(goerrors.CodeBadRequest)

func (a *Controller) Register(c router.Context) error {
	payload := new(RegisterRequest)
	if err := c.Bind(payload); err != nil {
		return wrapKind(ErrInvalidBody, err)
	}

	if err := payload.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"errors": err})
	}

	user, err := a.Registrar.RegisterUser(c.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		return err
	}

	a.Auther.RecordRegistration(c.Context(), user)

	return c.JSON(http.StatusOK, map[string]any{
		"message": "user created",
		"id":      user.ID.String(),
	})
}

func (a *Controller) Login(c router.Context) error {
	payload := new(LoginRequest)
	if err := c.Bind(payload); err != nil {
		return wrapKind(ErrInvalidBody, err)
	}

	if err := payload.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"errors": err})
	}

	if a.Debug {
		a.Logger.Debug("login attempt", "email", payload.Email)
	}

	token, err := a.Auther.Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		if HasKind(err, TextCodeMismatchedPassword) || HasKind(err, TextCodeIdentityNotFound) {
			return c.JSON(http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		}
		return err
	}

	return c.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (a *Controller) ListUsers(c router.Context) error {
	users, _, err := a.Repo.Users().List(c.Context(), UsersOrderedByName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (a *Controller) SearchUsers(c router.Context) error {
	query := UserQuery{
		Page:            c.QueryInt("page", 1),
		PageSize:        c.QueryInt("pageSize", DefaultPageSize),
		Search:          c.Query("search", ""),
		IncludeBookings: queryBool(c, "includeBookings", false),
		Limit:           c.QueryInt("limit", 0),
		SortBy:          c.Query("sortBy", "name"),
		Ascending:       queryBool(c, "ascending", true),
	}

	page, err := a.Repo.Users().Search(c.Context(), query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (a *Controller) Me(c router.Context) error {
	userID, ok := a.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := a.Repo.Users().GetByID(c.Context(), userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return unauthorized(c)
		}
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (a *Controller) ListRooms(c router.Context) error {
	rooms, _, err := a.Repo.Rooms().List(c.Context(), RoomsOrderedByPrice)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rooms)
}

func (a *Controller) CreateBooking(c router.Context) error {
	userID, ok := a.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	payload := new(BookingRequest)
	if err := c.Bind(payload); err != nil {
		return wrapKind(ErrInvalidBody, err)
	}

	if err := payload.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"errors": err})
	}

	roomIDs := make([]uuid.UUID, 0, len(payload.RoomIDs))
	for _, raw := range payload.RoomIDs {
		roomIDs = append(roomIDs, uuid.MustParse(strings.TrimSpace(raw)))
	}

	booking, err := a.Repo.Bookings().Create(c.Context(), NewBooking{
		UserID:       userID,
		RoomIDs:      roomIDs,
		CheckInDate:  payload.CheckInDate,
		CheckOutDate: payload.CheckOutDate,
	})
	if err != nil {
		return err
	}

	a.Auther.emit(c.Context(), ActivityEventBookingCreated, ActorRef{ID: userID.String(), Type: "user"}, userID.String(), map[string]any{
		"booking_id":  booking.ID.String(),
		"total_price": booking.TotalPrice,
	})

	return c.JSON(http.StatusCreated, booking)
}

func (a *Controller) ListBookings(c router.Context) error {
	userID, ok := a.currentUserID(c)
	if !ok {
		return unauthorized(c)
	}

	bookings, err := a.Repo.Bookings().ListForUser(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bookings)
}

func (a *Controller) HealthCheck(c router.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "OK", Message: "API is running"})
}

func (a *Controller) DBHealthCheck(c router.Context) error {
	if err := a.Repo.Ping(c.Context()); err != nil {
		a.Logger.Error("database health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, StatusResponse{
			Status:  "Error",
			Message: "database connection failed",
		})
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "OK", Message: "database is running"})
}

func (a *Controller) Ping(c router.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "OK", Message: "Pong"})
}

func (a *Controller) currentUserID(c router.Context) (uuid.UUID, bool) {
	claims, ok := GetRouterClaims(c, a.ContextKey)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func unauthorized(c router.Context) error {
	return c.Status(router.StatusUnauthorized).SendString("Unauthorized")
}

func queryBool(c router.Context, key string, def bool) bool {
	raw := strings.TrimSpace(c.Query(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
