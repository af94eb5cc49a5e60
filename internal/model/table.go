package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Table status values.
const (
	TableAvailable   = "available"
	TableOccupied    = "occupied"
	TableReserved    = "reserved"
	TableMaintenance = "maintenance"
)

// Zone groups tables (e.g. "Indoor", "Patio").
type Zone struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time
}

// Table is a physical seating unit. QRToken is generated once on insert and
// never rotated; it is the only identifier printed on the table.
type Table struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tables_tenant_number"`
	ZoneID    *uuid.UUID `gorm:"type:uuid;index"`
	Number    string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_tables_tenant_number"`
	Capacity  int        `gorm:"not null;default:4"`
	Status    string     `gorm:"type:varchar(20);not null;default:'available'"`
	QRToken   string     `gorm:"column:qr_token;type:varchar(64);uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Zone *Zone `gorm:"foreignKey:ZoneID"`
}

// BeforeCreate assigns the opaque QR token.
func (t *Table) BeforeCreate(_ *gorm.DB) error {
	if t.QRToken == "" {
		tok, err := RandomToken()
		if err != nil {
			return err
		}
		t.QRToken = tok
	}
	return nil
}

// TableSession is one dining visit. At most one active session per table,
// enforced by the partial unique index idx_table_sessions_one_active.
type TableSession struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index"`
	TableID      uuid.UUID `gorm:"type:uuid;not null;index"`
	StartTime    time.Time `gorm:"not null"`
	EndTime      *time.Time
	IsActive     bool   `gorm:"not null;default:true"`
	AccessToken  string `gorm:"type:varchar(64);uniqueIndex;not null"`
	PINHash      string `gorm:"column:pin_hash;not null;default:''"` // bcrypt; empty = no PIN
	GuestCount   int    `gorm:"not null;default:1"`
	CustomerName string `gorm:"type:varchar(100);not null;default:''"`

	Table *Table `gorm:"foreignKey:TableID"`
}

// RandomToken returns 128 random bits hex-encoded.
func RandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
