package types

import "time"

// BatchStatus is the lifecycle tag of a batch.
type BatchStatus string

const (
	StatusFresh      BatchStatus = "Fresh"
	StatusMaturing   BatchStatus = "Maturing"
	StatusNearExpiry BatchStatus = "NearExpiry"
	StatusExpired    BatchStatus = "Expired"
	StatusDispatched BatchStatus = "Dispatched"
	StatusDisposed   BatchStatus = "Disposed"
)

// MonitoredStatuses is the set of statuses the scheduler evaluates.
var MonitoredStatuses = []BatchStatus{StatusFresh, StatusMaturing, StatusNearExpiry}

// Monitored reports whether s belongs to MonitoredStatuses.
func (s BatchStatus) Monitored() bool {
	for _, m := range MonitoredStatuses {
		if s == m {
			return true
		}
	}
	return false
}

const day = 24 * time.Hour

// Batch is a tracked quantity of a single produce type stored in one warehouse.
type Batch struct {
	ID            string      `json:"id"`
	WarehouseID   string      `json:"warehouseId"`
	ProduceType   string      `json:"produceType"`
	ArrivalDate   time.Time   `json:"arrivalDate"`
	ShelfLifeDays float64     `json:"shelfLifeDays"`
	Status        BatchStatus `json:"status"`

	RiskScore         int        `json:"riskScore"`
	RiskLevel         RiskLevel  `json:"riskLevel"`
	LastAnalyzedAt    *time.Time `json:"lastAnalyzedAt,omitempty"`
	CooldownUntil     *time.Time `json:"cooldownUntil,omitempty"`
	LastRiskUpdatedAt *time.Time `json:"lastRiskUpdatedAt,omitempty"`
}

// ExpiryDate is arrival plus shelf life.
func (b Batch) ExpiryDate() time.Time {
	return b.ArrivalDate.Add(time.Duration(b.ShelfLifeDays * float64(day)))
}

// DaysStored is the number of whole days since arrival, never negative.
func (b Batch) DaysStored(now time.Time) int {
	d := now.Sub(b.ArrivalDate)
	if d < 0 {
		return 0
	}
	return int(d / day)
}

// EffectiveStatus returns Expired once now is past the expiry date for a batch
// still in a monitored status; otherwise the stored status.
func (b Batch) EffectiveStatus(now time.Time) BatchStatus {
	if b.Status.Monitored() && now.After(b.ExpiryDate()) {
		return StatusExpired
	}
	return b.Status
}

// RiskUpdate is the atomic write applied to a batch after an assessment.
// CooldownUntil is never before AnalyzedAt.
type RiskUpdate struct {
	Score         int
	Level         RiskLevel
	AnalyzedAt    time.Time
	CooldownUntil time.Time
}

// Apply copies u onto b.
func (u RiskUpdate) Apply(b *Batch) {
	analyzed := u.AnalyzedAt
	until := u.CooldownUntil
	b.RiskScore = u.Score
	b.RiskLevel = u.Level
	b.LastAnalyzedAt = &analyzed
	b.CooldownUntil = &until
	b.LastRiskUpdatedAt = &analyzed
}
