package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Name and Email are stored lowercased.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name          string     `bun:"name,notnull,unique" json:"name"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"user_role,notnull" json:"role"`
	Bookings      []*Booking `bun:"m2m:booking_users,join:User=Booking" json:"bookings,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*User)(nil)

// BeforeAppendModel assigns the id and keeps the timestamps current.
func (u *User) BeforeAppendModel(_ context.Context, query bun.Query) error {
	stampModel(query, &u.ID, &u.CreatedAt, &u.UpdatedAt)
	return nil
}

// Room is a bookable room.
type Room struct {
	bun.BaseModel `bun:"table:rooms,alias:rm"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Description   string    `bun:"description" json:"description,omitempty"`
	Image         string    `bun:"image" json:"image,omitempty"`
	Price         float64   `bun:"price,notnull" json:"price"`
	Capacity      int       `bun:"capacity,notnull" json:"capacity"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Room)(nil)

func (r *Room) BeforeAppendModel(_ context.Context, query bun.Query) error {
	stampModel(query, &r.ID, &r.CreatedAt, &r.UpdatedAt)
	return nil
}

// Booking links users to rooms for a stay.
type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:bk"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	CheckInDate   time.Time `bun:"check_in_date,notnull" json:"check_in_date"`
	CheckOutDate  time.Time `bun:"check_out_date,notnull" json:"check_out_date"`
	TotalPrice    float64   `bun:"total_price,notnull" json:"total_price"`
	Users         []*User   `bun:"m2m:booking_users,join:Booking=User" json:"users,omitempty"`
	Rooms         []*Room   `bun:"m2m:booking_rooms,join:Booking=Room" json:"rooms,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Booking)(nil)

func (b *Booking) BeforeAppendModel(_ context.Context, query bun.Query) error {
	stampModel(query, &b.ID, &b.CreatedAt, &b.UpdatedAt)
	return nil
}

// Nights is the number of whole days between check in and check out.
func (b *Booking) Nights() int {
	if !b.CheckOutDate.After(b.CheckInDate) {
		return 0
	}
	return int(b.CheckOutDate.Sub(b.CheckInDate).Hours() / 24)
}

// CalculateTotalPrice sums room price times nights over the booked rooms.
// A booking without rooms costs nothing.
func (b *Booking) CalculateTotalPrice() float64 {
	if len(b.Rooms) == 0 {
		return 0
	}
	nights := float64(b.Nights())
	var total float64
	for _, room := range b.Rooms {
		if room == nil {
			continue
		}
		total += room.Price * nights
	}
	return total
}

// BookingUser is the booking/user join row.
type BookingUser struct {
	bun.BaseModel `bun:"table:booking_users,alias:bu"`
	BookingID     uuid.UUID `bun:"booking_id,pk,type:uuid"`
	Booking       *Booking  `bun:"rel:belongs-to,join:booking_id=id"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid"`
	User          *User     `bun:"rel:belongs-to,join:user_id=id"`
}

// BookingRoom is the booking/room join row.
type BookingRoom struct {
	bun.BaseModel `bun:"table:booking_rooms,alias:br"`
	BookingID     uuid.UUID `bun:"booking_id,pk,type:uuid"`
	Booking       *Booking  `bun:"rel:belongs-to,join:booking_id=id"`
	RoomID        uuid.UUID `bun:"room_id,pk,type:uuid"`
	Room          *Room     `bun:"rel:belongs-to,join:room_id=id"`
}

// RegisterModels registers the join models bun needs to resolve m2m relations.
func RegisterModels(db *bun.DB) {
	db.RegisterModel((*BookingUser)(nil), (*BookingRoom)(nil))
}

func stampModel(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			*id = uuid.New()
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		*updatedAt = now
	case *bun.UpdateQuery:
		*updatedAt = now
	}
}
