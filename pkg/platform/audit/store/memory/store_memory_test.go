package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "leasehold/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, audit.Event{Domain: "a", Action: string(audit.EventDomainSetup)}))
	require.NoError(t, s.Append(ctx, audit.Event{Domain: "b", Action: string(audit.EventDomainSetup)}))
	require.NoError(t, s.Append(ctx, audit.Event{Domain: "a", Action: string(audit.EventSubdomainRegistered)}))

	events, err := s.ListByDomain(ctx, "a")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, string(audit.EventSubdomainRegistered), events[1].Action)

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Domain)

	s.Clear()
	events, err = s.ListByDomain(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, events)
}
