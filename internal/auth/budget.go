package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/spendora/expense-qa/internal/errors"
)

// Limits caps a tenant's generator spend in USD per calendar day and per
// calendar month. A zero cap disables that window.
type Limits struct {
	DailyUSD   float64 `json:"daily_usd"`
	MonthlyUSD float64 `json:"monthly_usd"`
}

// Usage reports what a tenant has spent so far.
type Usage struct {
	DayUSD   float64 `json:"day_usd"`
	MonthUSD float64 `json:"month_usd"`
	TotalUSD float64 `json:"total_usd"`
}

// spendWindow accumulates cost within one calendar window. The window is
// identified by its start instant; a mismatching start means the window has
// rolled over and the accumulated spend no longer counts.
type spendWindow struct {
	start time.Time
	spent float64
}

func (w *spendWindow) current(start time.Time) float64 {
	if !w.start.Equal(start) {
		return 0
	}
	return w.spent
}

func (w *spendWindow) add(start time.Time, cost float64) {
	if !w.start.Equal(start) {
		w.start = start
		w.spent = 0
	}
	w.spent += cost
}

type tenantSpend struct {
	limits Limits
	day    spendWindow
	month  spendWindow
	total  float64
}

// BudgetManager enforces per-tenant spending limits on generator calls.
// Tenants without limits are never blocked. Windows reset on calendar
// boundaries, not on a rolling clock.
type BudgetManager struct {
	mu       sync.Mutex
	tenants  map[string]*tenantSpend
	defaults Limits
	now      func() time.Time
}

// NewBudgetManager creates an empty budget manager.
func NewBudgetManager() *BudgetManager {
	return &BudgetManager{
		tenants: make(map[string]*tenantSpend),
		now:     time.Now,
	}
}

// SetDefaultLimits sets the caps applied to tenants without explicit limits.
func (bm *BudgetManager) SetDefaultLimits(limits Limits) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.defaults = limits
}

// SetLimits sets or replaces a tenant's spending caps. Accumulated spend is
// kept so raising a cap mid-window does not forgive past usage.
func (bm *BudgetManager) SetLimits(tenantID string, limits Limits) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	spend, ok := bm.tenants[tenantID]
	if !ok {
		spend = &tenantSpend{}
		bm.tenants[tenantID] = spend
	}
	spend.limits = limits
}

// LimitsFor returns a tenant's caps, reporting whether any are set.
func (bm *BudgetManager) LimitsFor(tenantID string) (Limits, bool) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	spend, ok := bm.tenants[tenantID]
	if !ok {
		return Limits{}, false
	}
	return spend.limits, true
}

// UsageFor returns a tenant's spend in the current day and month windows.
func (bm *BudgetManager) UsageFor(tenantID string) (Usage, bool) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	spend, ok := bm.tenants[tenantID]
	if !ok {
		return Usage{}, false
	}

	now := bm.now()
	return Usage{
		DayUSD:   spend.day.current(dayStart(now)),
		MonthUSD: spend.month.current(monthStart(now)),
		TotalUSD: spend.total,
	}, true
}

// CheckBudget reports whether the tenant can afford the cost without
// recording it. The returned error names the window that would be exceeded.
func (bm *BudgetManager) CheckBudget(tenantID string, cost float64) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	spend, ok := bm.tenants[tenantID]
	if !ok {
		// A first-time tenant is checked against the defaults without
		// allocating an entry; RecordCost allocates on actual spend.
		spend = &tenantSpend{limits: bm.defaults}
	}

	now := bm.now()

	if limit := spend.limits.DailyUSD; limit > 0 {
		if used := spend.day.current(dayStart(now)); used+cost > limit {
			return budgetError("daily", used, limit, cost)
		}
	}
	if limit := spend.limits.MonthlyUSD; limit > 0 {
		if used := spend.month.current(monthStart(now)); used+cost > limit {
			return budgetError("monthly", used, limit, cost)
		}
	}

	return nil
}

// RecordCost adds a spent cost to the tenant's windows. Recording is
// unconditional; affordability is CheckBudget's job.
func (bm *BudgetManager) RecordCost(tenantID string, cost float64) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	spend, ok := bm.tenants[tenantID]
	if !ok {
		spend = &tenantSpend{limits: bm.defaults}
		bm.tenants[tenantID] = spend
	}

	now := bm.now()
	spend.day.add(dayStart(now), cost)
	spend.month.add(monthStart(now), cost)
	spend.total += cost
}

// Remove drops a tenant's limits and accumulated spend.
func (bm *BudgetManager) Remove(tenantID string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	delete(bm.tenants, tenantID)
}

func budgetError(window string, used, limit, cost float64) *errors.EnhancedError {
	return errors.New(errors.ErrCodeBudgetExceeded,
		fmt.Sprintf("%s generator budget exceeded", window)).
		WithDetails(fmt.Sprintf("%.4f of %.4f USD spent; this request costs %.4f USD", used, limit, cost)).
		WithMetadata("window", window).
		WithMetadata("limit_usd", limit).
		WithMetadata("spent_usd", used)
}

func dayStart(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func monthStart(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
}
