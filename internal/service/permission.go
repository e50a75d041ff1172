package service

import (
	"github.com/uzconnect/operator-console-api/internal/models"
	"github.com/uzconnect/operator-console-api/pkg/config"
)

// PermissionReason explains a permission decision. The front-end maps these
// codes to display text; the engine never produces user-facing language.
type PermissionReason string

const (
	ReasonAllowed               PermissionReason = "ALLOWED"
	ReasonNoCreatePermission    PermissionReason = "NO_CREATE_PERMISSION"
	ReasonNoTechnicalPermission PermissionReason = "NO_TECHNICAL_PERMISSION"
	ReasonDailyLimitExceeded    PermissionReason = "DAILY_LIMIT_EXCEEDED"
	ReasonPermissionDenied      PermissionReason = "PERMISSION_DENIED"
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool             `json:"allowed"`
	Reason  PermissionReason `json:"reason"`
}

// PermissionEngine decides whether a role may create a given request type.
// It is a pure table lookup: no I/O, deterministic, and fail-closed for any
// role/type pair it does not know.
type PermissionEngine struct {
	capabilities map[models.StaffRole]map[models.ApplicationType]bool
	dailyLimits  map[models.StaffRole]int
}

// NewPermissionEngine builds the engine from the fixed capability table and
// the configured per-role daily quotas.
func NewPermissionEngine(cfg config.PermissionConfig) *PermissionEngine {
	both := map[models.ApplicationType]bool{
		models.TypeConnection:       true,
		models.TypeTechnicalService: true,
	}
	connectionOnly := map[models.ApplicationType]bool{
		models.TypeConnection: true,
	}

	return &PermissionEngine{
		capabilities: map[models.StaffRole]map[models.ApplicationType]bool{
			models.RoleManager:       both,
			models.RoleController:    both,
			models.RoleCallCenter:    both,
			models.RoleJuniorManager: connectionOnly,
			models.RoleTechnician:    {},
			models.RoleWarehouse:     {},
		},
		dailyLimits: map[models.StaffRole]int{
			models.RoleManager:       cfg.ManagerDailyLimit,
			models.RoleJuniorManager: cfg.JuniorManagerDailyLimit,
			models.RoleController:    cfg.ControllerDailyLimit,
			models.RoleCallCenter:    cfg.CallCenterDailyLimit,
		},
	}
}

// Check returns the decision for (role, application type, today's count).
// The quota is checked first: once the limit is reached the denial is
// DAILY_LIMIT_EXCEEDED regardless of capability.
func (e *PermissionEngine) Check(role models.StaffRole, appType models.ApplicationType, dailyCount int) Decision {
	allowed, known := e.capabilities[role]
	if !known {
		return Decision{Allowed: false, Reason: ReasonPermissionDenied}
	}

	if limit, hasLimit := e.dailyLimits[role]; hasLimit && dailyCount >= limit {
		return Decision{Allowed: false, Reason: ReasonDailyLimitExceeded}
	}

	if allowed[appType] {
		return Decision{Allowed: true, Reason: ReasonAllowed}
	}

	if len(allowed) == 0 {
		return Decision{Allowed: false, Reason: ReasonNoCreatePermission}
	}
	if appType == models.TypeTechnicalService {
		return Decision{Allowed: false, Reason: ReasonNoTechnicalPermission}
	}
	return Decision{Allowed: false, Reason: ReasonPermissionDenied}
}

// DailyLimit reports the quota for a role, zero when the role may not create.
func (e *PermissionEngine) DailyLimit(role models.StaffRole) int {
	return e.dailyLimits[role]
}
