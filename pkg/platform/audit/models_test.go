package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditEventCategory(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventDomainSetup.Category())
	assert.Equal(t, CategoryCompliance, EventSubdomainReclaimed.Category())
	assert.Equal(t, CategorySecurity, EventOracleChanged.Category())
	assert.Equal(t, CategoryOperations, EventSubdomainRegistered.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("something_else").Category())
}
