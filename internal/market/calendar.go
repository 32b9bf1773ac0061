// Package market decides when a submitted order executes, based on the
// exchange's trading hours in its local timezone.
package market

import (
	"fmt"
	"time"

	// Embedded zone database so America/New_York resolves on minimal images.
	_ "time/tzdata"

	"github.com/ksred/klear-splitter/internal/types"
)

const clockLayout = "15:04"

// Config describes the exchange trading window
type Config struct {
	Timezone     string `yaml:"timezone"`
	Open         string `yaml:"open"`  // HH:MM, inclusive
	Close        string `yaml:"close"` // HH:MM, exclusive
	EnforceHours bool   `yaml:"enforce_hours"`
}

// DefaultConfig is the NYSE regular session
func DefaultConfig() Config {
	return Config{
		Timezone:     "America/New_York",
		Open:         "09:30",
		Close:        "16:00",
		EnforceHours: true,
	}
}

// Decision is the execution label stamped on a new order
type Decision struct {
	ExecutionDate string
	Status        types.OrderStatus
}

// Calendar is a Monday to Friday exchange calendar. It holds no mutable state.
type Calendar struct {
	loc          *time.Location
	open         time.Duration
	close        time.Duration
	enforceHours bool
}

// NewCalendar parses cfg into a Calendar
func NewCalendar(cfg Config) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load market timezone %q: %w", cfg.Timezone, err)
	}
	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("parse market open: %w", err)
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("parse market close: %w", err)
	}
	if closeAt <= open {
		return nil, fmt.Errorf("market close %s must be after open %s", cfg.Close, cfg.Open)
	}
	return &Calendar{
		loc:          loc,
		open:         open,
		close:        closeAt,
		enforceHours: cfg.EnforceHours,
	}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Location returns the exchange timezone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsOpen reports whether now falls inside a trading session
func (c *Calendar) IsOpen(now time.Time) bool {
	local := now.In(c.loc)
	if !IsTradingDay(local) {
		return false
	}
	if !c.enforceHours {
		return true
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	elapsed := local.Sub(midnight)
	return elapsed >= c.open && elapsed < c.close
}

// Decide returns SCHEDULED for today while the market is open, otherwise
// PENDING for the next trading day after today.
func (c *Calendar) Decide(now time.Time) Decision {
	local := now.In(c.loc)
	if c.IsOpen(local) {
		return Decision{
			ExecutionDate: local.Format(types.DateFormat),
			Status:        types.StatusScheduled,
		}
	}
	return Decision{
		ExecutionDate: NextTradingDay(local).Format(types.DateFormat),
		Status:        types.StatusPending,
	}
}

// NextTradingDay returns the first weekday strictly after t's calendar day,
// in t's location.
func NextTradingDay(t time.Time) time.Time {
	// Noon keeps the date stable across DST transitions.
	d := time.Date(t.Year(), t.Month(), t.Day()+1, 12, 0, 0, 0, t.Location())
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// IsTradingDay reports whether t is a weekday
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
