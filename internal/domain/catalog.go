package domain

import (
	"time"

	"github.com/uptrace/bun"
)

type Workshop struct {
	bun.BaseModel `bun:"table:workshops,alias:w" json:"-"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Name     string `bun:"name,notnull" json:"name"`
	Location string `bun:"location,notnull" json:"location"`
	Phone    string `bun:"phone" json:"phone"`
	Email    string `bun:"email" json:"email"`
}

type Service struct {
	bun.BaseModel `bun:"table:services,alias:s" json:"-"`

	ID          int64   `bun:"id,pk,autoincrement" json:"id"`
	Name        string  `bun:"name,notnull" json:"name"`
	Description string  `bun:"description" json:"description"`
	Duration    int     `bun:"duration,notnull" json:"duration"`
	Price       float64 `bun:"price,notnull" json:"price"`
}

// Length is the duration as a time.Duration.
func (s Service) Length() time.Duration {
	return time.Duration(s.Duration) * time.Minute
}

// WorkshopService links a service to a workshop that offers it.
type WorkshopService struct {
	bun.BaseModel `bun:"table:workshop_services,alias:ws" json:"-"`

	WorkshopID int64 `bun:"workshop_id,pk"`
	ServiceID  int64 `bun:"service_id,pk"`
}

type Technician struct {
	bun.BaseModel `bun:"table:technicians,alias:t" json:"-"`

	ID             int64  `bun:"id,pk,autoincrement" json:"id"`
	WorkshopID     int64  `bun:"workshop_id,notnull" json:"workshop_id"`
	Name           string `bun:"name,notnull" json:"name"`
	Certifications string `bun:"certifications" json:"certifications"`
	Experience     int    `bun:"experience" json:"experience"`
}

type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c" json:"-"`

	ID           int64  `bun:"id,pk,autoincrement" json:"id"`
	FirstName    string `bun:"first_name,notnull" json:"firstname"`
	LastName     string `bun:"last_name,notnull" json:"lastname"`
	Email        string `bun:"email,notnull,unique" json:"email"`
	PasswordHash string `bun:"password_hash,notnull" json:"-"`
	Tokens       int    `bun:"tokens,notnull" json:"tokens"`
}
