package domain

import (
	"time"
)

type TenantID string

type Tenant struct {
	ID           TenantID     `json:"id"`
	Slug         string       `json:"slug"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	Address      string       `json:"address"`
	Subscription Subscription `json:"subscription"`
	Settings     Settings     `json:"settings"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
}

type PlanID string

const (
	PlanMonthly PlanID = "monthly"
	PlanYearly  PlanID = "yearly"
)

type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// Plan is a mock billing plan. Prices are whole euros.
type Plan struct {
	ID       PlanID          `json:"id"`
	Price    int             `json:"price"`
	Currency string          `json:"currency"`
	Interval BillingInterval `json:"interval"`
	Period   time.Duration   `json:"-"`
}

var Plans = map[PlanID]Plan{
	PlanMonthly: {ID: PlanMonthly, Price: 67, Currency: "EUR", Interval: IntervalMonth, Period: 30 * 24 * time.Hour},
	PlanYearly:  {ID: PlanYearly, Price: 479, Currency: "EUR", Interval: IntervalYear, Period: 365 * 24 * time.Hour},
}

// YearlySavings is what the yearly plan saves over twelve monthly payments.
func YearlySavings() int {
	return 12*Plans[PlanMonthly].Price - Plans[PlanYearly].Price
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	Plan             PlanID             `json:"plan"`
	Status           SubscriptionStatus `json:"status"`
	CurrentPeriodEnd time.Time          `json:"currentPeriodEnd"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// IsActive reports a paid, unexpired subscription. Trials do not count.
func (s Subscription) IsActive(now time.Time) bool {
	return s.Status == SubscriptionActive && s.CurrentPeriodEnd.After(now)
}
