package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// StarterCredits is granted to every new account on signup. Starter credits
// raise the balance without touching the lifetime purchase counter.
const StarterCredits = 10

type User struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	Name                  string         `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	Email                 string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password              string         `gorm:"type:text" json:"-" validate:"required,min=8"`
	Status                string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	CreditsBalance        int            `gorm:"not null;default:10" json:"credits_balance"`
	CreditsPurchasedTotal int            `gorm:"not null;default:0" json:"credits_purchased_total"`
	CreditsLifetimeUsed   int            `gorm:"not null;default:0" json:"credits_lifetime_used"`
	APIAccessUnlocked     bool           `gorm:"not null;default:false" json:"api_access_unlocked"`
	StripeCustomerID      *string        `gorm:"type:varchar(191);default:null;index" json:"-"`
	LastPurchaseAt        *time.Time     `gorm:"type:timestamp;default:null" json:"last_purchase_at,omitempty"`
	LastPurchaseAmount    *int           `gorm:"default:null" json:"last_purchase_amount,omitempty"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateUser builds a new active account with the starter credit balance.
// The caller persists it through the user repository.
func CreateUser(name string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:           name,
		Email:          email,
		Password:       pw,
		Status:         STATUS_ACTIVE,
		CreditsBalance: StarterCredits,
	}

	err = u.Validate()
	if err != nil {
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

// CanProcess reports whether the account has spendable credits left.
func (u *User) CanProcess() bool {
	return u.CreditsBalance > 0
}
