package model

import "time"

// DayKey formats the aggregation day of t (YYYYMMDD) in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("20060102")
}

// CostDelta is one increment to a user's daily cost record. The total is
// never stored on the delta; it is always derived from the categories.
type CostDelta struct {
	UserID           string    `json:"user_id"`
	DayKey           string    `json:"day_key"`
	EmailsSent       int64     `json:"emails_sent,omitempty"`
	EmailCostUSD     float64   `json:"email_cost_usd,omitempty"`
	TokensUsed       int64     `json:"tokens_used,omitempty"`
	LLMCostUSD       float64   `json:"llm_cost_usd,omitempty"`
	FirestoreReads   int64     `json:"firestore_reads,omitempty"`
	FirestoreWrites  int64     `json:"firestore_writes,omitempty"`
	FirestoreCostUSD float64   `json:"firestore_cost_usd,omitempty"`
	At               time.Time `json:"at"`
}

// TotalCostUSD is the sum of the category costs.
func (d CostDelta) TotalCostUSD() float64 {
	return d.EmailCostUSD + d.LLMCostUSD + d.FirestoreCostUSD
}

// UserCostRecord accumulates a user's estimated spend for one day.
type UserCostRecord struct {
	UserID           string    `db:"user_id" json:"user_id"`
	DayKey           string    `db:"day_key" json:"day_key"`
	EmailsSent       int64     `db:"emails_sent" json:"emails_sent"`
	EmailCostUSD     float64   `db:"email_cost_usd" json:"email_cost_usd"`
	TokensUsed       int64     `db:"tokens_used" json:"tokens_used"`
	LLMCostUSD       float64   `db:"llm_cost_usd" json:"llm_cost_usd"`
	FirestoreReads   int64     `db:"firestore_reads" json:"firestore_reads"`
	FirestoreWrites  int64     `db:"firestore_writes" json:"firestore_writes"`
	FirestoreCostUSD float64   `db:"firestore_cost_usd" json:"firestore_cost_usd"`
	TotalCostUSD     float64   `db:"total_cost_usd" json:"total_cost_usd"`
	LastUpdated      time.Time `db:"last_updated" json:"last_updated"`
}

// Add folds d into the record.
func (r *UserCostRecord) Add(d CostDelta) {
	r.EmailsSent += d.EmailsSent
	r.EmailCostUSD += d.EmailCostUSD
	r.TokensUsed += d.TokensUsed
	r.LLMCostUSD += d.LLMCostUSD
	r.FirestoreReads += d.FirestoreReads
	r.FirestoreWrites += d.FirestoreWrites
	r.FirestoreCostUSD += d.FirestoreCostUSD
	r.TotalCostUSD += d.TotalCostUSD()
	r.LastUpdated = d.At
}

type CostBreakdown struct {
	DayKey           string  `json:"day_key"`
	EmailCostUSD     float64 `json:"email_cost_usd"`
	LLMCostUSD       float64 `json:"llm_cost_usd"`
	FirestoreCostUSD float64 `json:"firestore_cost_usd"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	EmailPercent     float64 `json:"email_percent"`
	LLMPercent       float64 `json:"llm_percent"`
	FirestorePercent float64 `json:"firestore_percent"`
}

// CostHealth classifies cost of goods sold against revenue.
type CostHealth string

const (
	HealthHealthy  CostHealth = "healthy"
	HealthWarning  CostHealth = "warning"
	HealthCritical CostHealth = "critical"
)

type MonthlyCostEstimate struct {
	DailyCostUSD   float64    `json:"daily_cost_usd"`
	MonthlyCostUSD float64    `json:"monthly_cost_usd"`
	ARPU           float64    `json:"arpu"`
	COGSRatio      float64    `json:"cogs_ratio"`
	Health         CostHealth `json:"health"`
}

type UserCostSummary struct {
	UserID                   string              `json:"user_id"`
	Today                    UserCostRecord      `json:"today"`
	Monthly                  MonthlyCostEstimate `json:"monthly"`
	ActiveFollowups          int                 `json:"active_followups"`
	CostPerActiveFollowupUSD float64             `json:"cost_per_active_followup_usd"`
}

// DailyCostReport is the exported per-day rollup across users.
type DailyCostReport struct {
	DayKey      string           `json:"day_key"`
	GeneratedAt time.Time        `json:"generated_at"`
	UserCount   int              `json:"user_count"`
	Totals      UserCostRecord   `json:"totals"`
	Users       []UserCostRecord `json:"users"`
}
