package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EmployeeStatus string

const (
	EmployeeStatusPending   EmployeeStatus = "pending"
	EmployeeStatusActive    EmployeeStatus = "active"
	EmployeeStatusSuspended EmployeeStatus = "suspended"
	EmployeeStatusInactive  EmployeeStatus = "inactive"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// Employee is a corporate user belonging to exactly one organization.
type Employee struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	OrganizationID       uuid.UUID       `json:"organization_id" db:"organization_id"`
	JobTitleID           *uuid.UUID      `json:"job_title_id,omitempty" db:"job_title_id"`
	FirstName            string          `json:"first_name" db:"first_name"`
	LastName             string          `json:"last_name" db:"last_name"`
	Email                string          `json:"email" db:"email"`
	Role                 Role            `json:"role" db:"role"`
	DailyBudgetLimit     decimal.Decimal `json:"daily_budget_limit" db:"daily_budget_limit"`
	DailyBudgetRemaining decimal.Decimal `json:"daily_budget_remaining" db:"daily_budget_remaining"`
	Status               EmployeeStatus  `json:"status" db:"status"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

func (e *Employee) DisplayName() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", e.FirstName, e.LastName))
}

func (e *Employee) IsActive() bool {
	return e.Status == EmployeeStatusActive
}

// JobTitle is a budget policy template assigned to employees.
type JobTitle struct {
	ID                 uuid.UUID        `json:"id" db:"id"`
	OrganizationID     uuid.UUID        `json:"organization_id" db:"organization_id"`
	Name               string           `json:"name" db:"name"`
	DailyBudgetLimit   decimal.Decimal  `json:"daily_budget_limit" db:"daily_budget_limit"`
	MonthlyBudgetLimit decimal.Decimal  `json:"monthly_budget_limit" db:"monthly_budget_limit"`
	ApprovalThreshold  *decimal.Decimal `json:"approval_threshold,omitempty" db:"approval_threshold"`
}
