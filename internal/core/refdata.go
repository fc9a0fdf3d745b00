package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category types. Like schedules, a closed enumeration with a parse at the
// boundary; the engine never sees anything else.
const (
	Income  CategoryType = "INCOME"
	Expense CategoryType = "EXPENSE"
)

type (
	CategoryType string

	// User is reference data here: registration, authentication and profile
	// management live outside the engine. The engine only resolves contact
	// details when delivering an alert.
	User struct {
		ID          uuid.UUID
		Username    string
		Email       string
		PhoneNumber string
		CreatedAt   time.Time
	}

	// Category is owned by exactly one user; rules, budgets and
	// transactions reference it by id.
	Category struct {
		ID        uuid.UUID
		UserID    uuid.UUID
		Name      string
		Type      CategoryType
		CreatedAt time.Time
	}
)

func ParseCategoryType(s string) (CategoryType, error) {
	switch ct := CategoryType(strings.ToUpper(strings.TrimSpace(s))); ct {
	case Income, Expense:
		return ct, nil
	default:
		return "", ErrInvalidCategoryType
	}
}

func (c CategoryType) Valid() bool {
	return c == Income || c == Expense
}
