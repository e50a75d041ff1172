package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uzconnect/operator-console-api/internal/models"
	"github.com/uzconnect/operator-console-api/pkg/config"
)

func testPermissionConfig() config.PermissionConfig {
	return config.PermissionConfig{
		ManagerDailyLimit:       50,
		JuniorManagerDailyLimit: 20,
		ControllerDailyLimit:    50,
		CallCenterDailyLimit:    100,
	}
}

func TestPermissionEngineCapabilities(t *testing.T) {
	engine := NewPermissionEngine(testPermissionConfig())

	cases := []struct {
		name    string
		role    models.StaffRole
		appType models.ApplicationType
		allowed bool
		reason  PermissionReason
	}{
		{"manager connection", models.RoleManager, models.TypeConnection, true, ReasonAllowed},
		{"manager technical", models.RoleManager, models.TypeTechnicalService, true, ReasonAllowed},
		{"controller connection", models.RoleController, models.TypeConnection, true, ReasonAllowed},
		{"controller technical", models.RoleController, models.TypeTechnicalService, true, ReasonAllowed},
		{"call center connection", models.RoleCallCenter, models.TypeConnection, true, ReasonAllowed},
		{"call center technical", models.RoleCallCenter, models.TypeTechnicalService, true, ReasonAllowed},
		{"junior manager connection", models.RoleJuniorManager, models.TypeConnection, true, ReasonAllowed},
		{"junior manager technical", models.RoleJuniorManager, models.TypeTechnicalService, false, ReasonNoTechnicalPermission},
		{"technician connection", models.RoleTechnician, models.TypeConnection, false, ReasonNoCreatePermission},
		{"technician technical", models.RoleTechnician, models.TypeTechnicalService, false, ReasonNoCreatePermission},
		{"warehouse connection", models.RoleWarehouse, models.TypeConnection, false, ReasonNoCreatePermission},
		{"warehouse technical", models.RoleWarehouse, models.TypeTechnicalService, false, ReasonNoCreatePermission},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := engine.Check(tc.role, tc.appType, 0)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.reason, decision.Reason)
		})
	}
}

func TestPermissionEngineUnknownRoleFailsClosed(t *testing.T) {
	engine := NewPermissionEngine(testPermissionConfig())

	decision := engine.Check(models.StaffRole("INTERN"), models.TypeConnection, 0)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonPermissionDenied, decision.Reason)
}

func TestPermissionEngineDailyLimit(t *testing.T) {
	engine := NewPermissionEngine(testPermissionConfig())

	decision := engine.Check(models.RoleJuniorManager, models.TypeConnection, 19)
	assert.True(t, decision.Allowed)

	decision = engine.Check(models.RoleJuniorManager, models.TypeConnection, 20)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonDailyLimitExceeded, decision.Reason)

	decision = engine.Check(models.RoleJuniorManager, models.TypeConnection, 35)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonDailyLimitExceeded, decision.Reason)
}

func TestPermissionEngineQuotaCheckedBeforeCapability(t *testing.T) {
	engine := NewPermissionEngine(testPermissionConfig())

	// A junior manager over quota asking for a technical request is denied
	// for the quota, not the missing capability.
	decision := engine.Check(models.RoleJuniorManager, models.TypeTechnicalService, 20)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonDailyLimitExceeded, decision.Reason)
}

func TestPermissionEngineDailyLimitLookup(t *testing.T) {
	engine := NewPermissionEngine(testPermissionConfig())

	assert.Equal(t, 50, engine.DailyLimit(models.RoleManager))
	assert.Equal(t, 20, engine.DailyLimit(models.RoleJuniorManager))
	assert.Equal(t, 100, engine.DailyLimit(models.RoleCallCenter))
	assert.Equal(t, 0, engine.DailyLimit(models.RoleTechnician))
}
