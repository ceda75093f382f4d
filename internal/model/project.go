package model

import "time"

// ProjectStatus is the lifecycle state of a growing project.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectPaused     ProjectStatus = "paused"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// IsValid reports whether s is a known project status.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectDraft, ProjectInProgress, ProjectPaused, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// AcceptsCosts reports whether new costs may be recorded against a project
// in this status.
func (s ProjectStatus) AcceptsCosts() bool {
	return s == ProjectDraft || s == ProjectInProgress || s == ProjectPaused
}

// Project is a growing cycle on one farm.
type Project struct {
	ID              int64         `json:"id"`
	FarmID          int64         `json:"farm_id" validate:"required"`
	Name            string        `json:"name" validate:"required"`
	Code            string        `json:"code"`
	Status          ProjectStatus `json:"status"`
	PlannedStart    *time.Time    `json:"planned_start,omitempty"`
	ActualStart     *time.Time    `json:"actual_start,omitempty"`
	ExpectedFinish  *time.Time    `json:"expected_finish,omitempty"`
	ActualFinish    *time.Time    `json:"actual_finish,omitempty"`
	PausedDate      *time.Time    `json:"paused_date,omitempty"`
	TotalPausedDays int           `json:"total_paused_days"`
	AVCOUpdated     bool          `json:"avco_updated"`
	CreatedAt       time.Time     `json:"created_at"`
}

// StatusChange is one row of a project's append-only status history.
type StatusChange struct {
	ID        int64         `json:"id"`
	ProjectID int64         `json:"project_id"`
	OldStatus ProjectStatus `json:"old_status"`
	NewStatus ProjectStatus `json:"new_status"`
	Reason    string        `json:"reason,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	ChangedAt time.Time     `json:"changed_at"`
}

// HouseAssignment binds a house to a project with a target product and
// expected harvest quantity.
type HouseAssignment struct {
	ID          int64   `json:"id"`
	ProjectID   int64   `json:"project_id" validate:"required"`
	HouseID     int64   `json:"house_id" validate:"required"`
	ProductID   int64   `json:"product_id,omitempty"`
	ExpectedQty float64 `json:"expected_qty" validate:"gte=0"`
	UOM         string  `json:"uom,omitempty"`
	Season      string  `json:"season,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// RequestContext carries the caller identity and clock into every operation.
type RequestContext struct {
	CompanyID int64
	UserID    string
	Lang      string
	Clock     func() time.Time
}

// Now returns the request clock, falling back to wall time.
func (rc RequestContext) Now() time.Time {
	if rc.Clock != nil {
		return rc.Clock()
	}
	return time.Now().UTC()
}
