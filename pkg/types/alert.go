package types

import (
	"math"
	"time"
)

// AlertType classifies an alert.
type AlertType string

const (
	AlertSpoilage        AlertType = "spoilage"
	AlertNearExpiry      AlertType = "nearExpiry"
	AlertHighDuration    AlertType = "highDuration"
	AlertForecastWarning AlertType = "forecastWarning"
)

// AlertStatus is the lifecycle state of an alert. Only active alerts may move;
// resolved and dismissed are terminal.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertResolved  AlertStatus = "resolved"
	AlertDismissed AlertStatus = "dismissed"
)

// Terminal reports whether s is resolved or dismissed.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertDismissed
}

// Alert is one observed risk event tied to a batch and an assessment.
type Alert struct {
	ID                  string      `json:"id"`
	Type                AlertType   `json:"alertType"`
	BatchID             string      `json:"batchId"`
	WarehouseID         string      `json:"warehouseId"`
	RiskLevel           RiskLevel   `json:"riskLevel"`
	RiskScore           int         `json:"riskScore"`
	Reason              string      `json:"reason"`
	RecommendedAction   string      `json:"recommendedAction"`
	TimeToCriticalHours *float64    `json:"timeToCriticalHours,omitempty"`
	Provenance          Provenance  `json:"provenance,omitempty"`
	Status              AlertStatus `json:"status"`
	ResolvedBy          string      `json:"resolvedBy,omitempty"`
	ResolvedAt          *time.Time  `json:"resolvedAt,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
}

// AlertFilter narrows an alert listing. Zero-valued fields do not filter.
type AlertFilter struct {
	WarehouseID string
	BatchID     string
	Status      AlertStatus
	RiskLevel   RiskLevel
}

// Match reports whether a satisfies f.
func (f AlertFilter) Match(a Alert) bool {
	if f.WarehouseID != "" && a.WarehouseID != f.WarehouseID {
		return false
	}
	if f.BatchID != "" && a.BatchID != f.BatchID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.RiskLevel != "" && a.RiskLevel != f.RiskLevel {
		return false
	}
	return true
}

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Default page bounds.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps p to valid bounds. Page is capped so Offset cannot
// overflow.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if maxPage := math.MaxInt / p.Limit; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

// Offset is the number of items before the page.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// AlertPage is one page of alerts, newest first.
type AlertPage struct {
	Items []Alert `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}
