package fakeapi

import "time"

// User is the public user record
type User struct {
	ID        uint64     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type account struct {
	*User
	PasswordHash []byte
}

// LoginResult is the body of a successful login
type LoginResult struct {
	SessionID             string    `json:"sessionId"`
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	User                  *User     `json:"user"`
}

type Record struct {
	ID              uint64     `json:"id"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
	UserID          uint64     `json:"userId"`
	CategoryID      uint64     `json:"categoryId"`
	PaymentMethodID uint64     `json:"paymentMethodId"`
	Amount          float64    `json:"amount"`
	Currency        string     `json:"currency"`
	Description     *string    `json:"description,omitempty"`
	Date            time.Time  `json:"date"`
}

type recordRequest struct {
	CategoryID      *uint64    `json:"categoryId"`
	PaymentMethodID *uint64    `json:"paymentMethodId"`
	Amount          *float64   `json:"amount"`
	Currency        *string    `json:"currency"`
	Description     *string    `json:"description"`
	Date            *time.Time `json:"date"`
}

const (
	CategoryIncome  = "INCOME"
	CategoryExpense = "EXPENSE"
)

type Category struct {
	ID          uint64  `json:"id"`
	UserID      uint64  `json:"userId"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

type categoryRequest struct {
	Name        *string `json:"name"`
	Type        *string `json:"type"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

type PaymentMethod struct {
	ID     uint64 `json:"id"`
	UserID uint64 `json:"userId"`
	Name   string `json:"name"`
}

type Setting struct {
	ID       uint64 `json:"id"`
	UserID   uint64 `json:"userId"`
	Language string `json:"language"`
	Currency string `json:"currency"`
}

var (
	languages  = map[string]bool{"MK": true, "EN": true}
	currencies = map[string]bool{"MKD": true, "EUR": true, "USD": true, "AUD": true, "CHF": true, "GBP": true}
)

type recordSummary struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type categoryStatItem struct {
	CategoryID   uint64  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	CategoryType string  `json:"categoryType"`
	Color        *string `json:"color"`
	RecordCount  int     `json:"recordCount"`
	TotalAmount  float64 `json:"totalAmount"`
}

type categoryStatistics struct {
	TotalIncome  float64            `json:"totalIncome"`
	TotalExpense float64            `json:"totalExpense"`
	NetBalance   float64            `json:"netBalance"`
	Currency     string             `json:"currency"`
	Categories   []categoryStatItem `json:"categories"`
}
