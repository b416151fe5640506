package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DateLayout is the calendar date format accepted by listing and report filters.
const DateLayout = "2006-01-02"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// GenerateID generates a unique ID with the given prefix, e.g. "acc-<uuid>".
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DayStart parses a YYYY-MM-DD date as the first instant of that UTC day.
func DayStart(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), time.UTC)
	if err != nil {
		return time.Time{}, errs.ErrInvalidDateRange.WithMessage("invalid date %q, expected YYYY-MM-DD", date)
	}
	return t, nil
}

// DayEnd parses a YYYY-MM-DD date as the last instant of that UTC day.
func DayEnd(date string) (time.Time, error) {
	t, err := DayStart(date)
	if err != nil {
		return t, err
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// DateRange parses optional from/to dates into inclusive day bounds. Empty
// strings leave that side open.
func DateRange(from, to string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if strings.TrimSpace(from) != "" {
		t, err := DayStart(from)
		if err != nil {
			return nil, nil, err
		}
		start = &t
	}
	if strings.TrimSpace(to) != "" {
		t, err := DayEnd(to)
		if err != nil {
			return nil, nil, err
		}
		end = &t
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, errs.ErrInvalidDateRange.WithMessage("fromDate %s is after toDate %s", from, to)
	}
	return start, end, nil
}

// Paginate applies defaults and bounds and returns limit and offset. Pages
// past the last representable offset are clamped so the offset never wraps.
func Paginate(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page > math.MaxInt/limit {
		page = math.MaxInt / limit
	}
	return limit, (page - 1) * limit
}
