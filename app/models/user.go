package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

type User struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Name             string     `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email            string     `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password         string     `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role             string     `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status           string     `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	ActivationToken  string     `gorm:"type:varchar(100);index" json:"-"`
	ActivationSentAt *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	ResetToken       string     `gorm:"type:varchar(100);default:null;index" json:"-"`
	ResetSentAt      *time.Time `gorm:"type:timestamp;default:null" json:"-"`

	// Subscription state, mutated only through the billing reducer.
	IsPro                 bool       `gorm:"default:false" json:"is_pro"`
	StripeCustomerID      *string    `gorm:"type:varchar(191);uniqueIndex;default:null" json:"-"`
	SubscriptionStatus    string     `gorm:"type:varchar(20);default:'none'" json:"subscription_status" validate:"oneof=none active canceled"`
	SubscriptionPlan      string     `gorm:"type:varchar(20);default:''" json:"subscription_plan"`
	SubscriptionExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"subscription_expires_at,omitempty"`

	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateUser builds a new user record with the subscription fields in their
// registration defaults (no Pro access, status none). Validation runs on the
// raw password before it is replaced with the bcrypt hash.
func CreateUser(username string, email string, password string) (*User, error) {
	u := &User{
		Name:               username,
		Email:              email,
		Password:           password,
		Role:               ROLE_USER,
		Status:             STATUS_INACTIVE,
		SubscriptionStatus: "none",
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	if err := u.SetPassword(password); err != nil {
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

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// GenerateActivationToken creates a random token and sets ActivationSentAt
func (u *User) GenerateActivationToken() error {
	u.ActivationToken = uuid.New().String()
	now := time.Now()
	u.ActivationSentAt = &now
	return nil
}

// GenerateResetToken creates a random token for the password reset flow
func (u *User) GenerateResetToken() error {
	u.ResetToken = uuid.New().String()
	now := time.Now()
	u.ResetSentAt = &now
	return nil
}

// IsResetTokenValid checks the reset token and its expiry (1 hour)
func (u *User) IsResetTokenValid(token string) bool {
	if u.ResetToken == "" || u.ResetSentAt == nil {
		return false
	}
	if u.ResetToken != token {
		return false
	}
	return time.Since(*u.ResetSentAt) < time.Hour
}

// ClearResetToken clears the password reset fields after use
func (u *User) ClearResetToken() {
	u.ResetToken = ""
	u.ResetSentAt = nil
}

// HasStripeCustomer reports whether a provider customer id has been linked.
func (u *User) HasStripeCustomer() bool {
	return u.StripeCustomerID != nil && *u.StripeCustomerID != ""
}
