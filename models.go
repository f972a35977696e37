package monexa

import (
	"net/url"
	"strconv"
	"time"

	"github.com/panyam/monexa/client"
)

// User is the signed-in user's profile
type User = client.UserProfile

// LoginResult is the session bundle returned by Login
type LoginResult = client.Session

// CategoryType tells income from expense categories
type CategoryType string

const (
	Income  CategoryType = "INCOME"
	Expense CategoryType = "EXPENSE"
)

// Currency is an ISO 4217 code supported by the API
type Currency string

const (
	MKD Currency = "MKD"
	EUR Currency = "EUR"
	USD Currency = "USD"
	AUD Currency = "AUD"
	CHF Currency = "CHF"
	GBP Currency = "GBP"
)

// Language is a UI language supported by the API
type Language string

const (
	Macedonian Language = "MK"
	English    Language = "EN"
)

type RegisterRequest struct {
	Email               string   `json:"email"`
	Password            string   `json:"password"`
	Name                string   `json:"name"`
	AcceptedDocumentIDs []uint64 `json:"acceptedDocumentIds,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Record is a single income or expense entry
type Record struct {
	ID              uint64     `json:"id"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
	UserID          uint64     `json:"userId"`
	CategoryID      uint64     `json:"categoryId"`
	PaymentMethodID uint64     `json:"paymentMethodId"`
	Amount          float64    `json:"amount"`
	Currency        Currency   `json:"currency"`
	Description     *string    `json:"description,omitempty"`
	Date            time.Time  `json:"date"`
}

// RecordRequest creates or patches a record. Nil fields are left unchanged on update.
type RecordRequest struct {
	CategoryID      *uint64    `json:"categoryId,omitempty"`
	PaymentMethodID *uint64    `json:"paymentMethodId,omitempty"`
	Amount          *float64   `json:"amount,omitempty"`
	Currency        *Currency  `json:"currency,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Date            *time.Time `json:"date,omitempty"`
}

// Sort keys and orders for RecordFilter
const (
	SortByDate   = "date"
	SortByAmount = "amount"
	SortAsc      = "asc"
	SortDesc     = "desc"
)

// RecordFilter narrows ListRecords. Zero values are not sent.
type RecordFilter struct {
	StartDate        time.Time
	EndDate          time.Time
	CategoryID       uint64
	PaymentMethodIDs []uint64
	Search           string
	SortBy           string
	SortOrder        string
}

// Values encodes the filter as query parameters
func (f RecordFilter) Values() url.Values {
	q := url.Values{}
	setDateRange(q, f.StartDate, f.EndDate)
	if f.CategoryID != 0 {
		q.Set("categoryId", strconv.FormatUint(f.CategoryID, 10))
	}
	for _, id := range f.PaymentMethodIDs {
		q.Add("paymentMethodIds", strconv.FormatUint(id, 10))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sortOrder", f.SortOrder)
	}
	return q
}

// RecordSummary is the net balance over a period in the user's currency
type RecordSummary struct {
	Amount   float64  `json:"amount"`
	Currency Currency `json:"currency"`
}

type Category struct {
	ID          uint64       `json:"id"`
	UserID      uint64       `json:"userId"`
	Name        string       `json:"name"`
	Type        CategoryType `json:"type"`
	Description *string      `json:"description,omitempty"`
	Color       *string      `json:"color,omitempty"`
}

// CategoryRequest creates or patches a category
type CategoryRequest struct {
	Name        *string       `json:"name,omitempty"`
	Type        *CategoryType `json:"type,omitempty"`
	Description *string       `json:"description,omitempty"`
	Color       *string       `json:"color,omitempty"`
}

// StatisticsFilter narrows CategoryStatistics
type StatisticsFilter struct {
	StartDate        time.Time
	EndDate          time.Time
	PaymentMethodIDs []uint64
	Search           string
}

// Values encodes the filter as query parameters
func (f StatisticsFilter) Values() url.Values {
	q := url.Values{}
	setDateRange(q, f.StartDate, f.EndDate)
	for _, id := range f.PaymentMethodIDs {
		q.Add("paymentMethodIds", strconv.FormatUint(id, 10))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

type CategoryStatItem struct {
	CategoryID   uint64       `json:"categoryId"`
	CategoryName string       `json:"categoryName"`
	CategoryType CategoryType `json:"categoryType"`
	Color        *string      `json:"color"`
	RecordCount  int          `json:"recordCount"`
	TotalAmount  float64      `json:"totalAmount"`
}

type CategoryStatistics struct {
	TotalIncome  float64            `json:"totalIncome"`
	TotalExpense float64            `json:"totalExpense"`
	NetBalance   float64            `json:"netBalance"`
	Currency     Currency           `json:"currency"`
	Categories   []CategoryStatItem `json:"categories"`
}

type PaymentMethod struct {
	ID     uint64 `json:"id"`
	UserID uint64 `json:"userId"`
	Name   string `json:"name"`
}

// Setting holds the user's preferences
type Setting struct {
	ID       uint64   `json:"id"`
	UserID   uint64   `json:"userId"`
	Language Language `json:"language"`
	Currency Currency `json:"currency"`
}

type SettingRequest struct {
	Language *Language `json:"language,omitempty"`
	Currency *Currency `json:"currency,omitempty"`
}

func setDateRange(q url.Values, start, end time.Time) {
	if !start.IsZero() {
		q.Set("startDate", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("endDate", end.UTC().Format(time.RFC3339))
	}
}
