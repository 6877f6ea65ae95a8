package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER      = "user"
	ROLE_MODERATOR = "moderator"
	ROLE_ADMIN     = "admin"

	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email          string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password       string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role           string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user moderator admin"`
	Status         string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	SchoolID       *uint          `gorm:"index" json:"school_id,omitempty"`
	GraduationYear *int           `gorm:"type:int" json:"graduation_year,omitempty"`
	APIKeyHash     string         `gorm:"type:char(64);index" json:"-"`
	LastLoginAt    *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()
	return v.Struct(u)
}

// IsModerator reports whether the user can invoke moderation endpoints
func (u *User) IsModerator() bool {
	return u.Role == ROLE_MODERATOR || u.Role == ROLE_ADMIN
}

func CreateUser(name string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:     name,
		Email:    email,
		Password: pw,
		Role:     ROLE_USER,
		Status:   STATUS_INACTIVE,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// HashAPIKey returns the hex sha256 digest stored for API key lookup.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
