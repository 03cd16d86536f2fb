package run

import (
	"testing"

	"portarium/app/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PutGet(t *testing.T) {
	requirer := require.New(t)
	registry := NewRegistry()

	r := newTestRun(t, policy.TierAuto)
	aggregate := NewAggregate(r, nil, nil)
	requirer.NoError(registry.Put(aggregate))

	got, ok := registry.Get(r.WorkspaceID, r.RunID)
	requirer.True(ok)
	requirer.Same(aggregate, got)

	// same run id in another workspace is a different key
	_, ok = registry.Get("ws-other", r.RunID)
	requirer.False(ok)
}

func TestRegistry_RejectsUnkeyedAggregate(t *testing.T) {
	registry := NewRegistry()
	err := registry.Put(NewAggregate(&Run{}, nil, nil))
	assert.Error(t, err)
}

func TestRegistry_ListIsWorkspaceScoped(t *testing.T) {
	requirer := require.New(t)
	registry := NewRegistry()

	a, err := NewRun("ws-1", "wf-1", "u-1", policy.TierAuto, "")
	requirer.NoError(err)
	b, err := NewRun("ws-1", "wf-2", "u-1", policy.TierAuto, "")
	requirer.NoError(err)
	c, err := NewRun("ws-2", "wf-1", "u-1", policy.TierAuto, "")
	requirer.NoError(err)

	for _, r := range []*Run{a, b, c} {
		requirer.NoError(registry.Put(NewAggregate(r, nil, nil)))
	}

	requirer.Len(registry.List("ws-1"), 2)
	requirer.Len(registry.List("ws-2"), 1)
	requirer.Empty(registry.List("ws-3"))
	requirer.Equal(3, registry.Len())

	registry.Reset()
	requirer.Equal(0, registry.Len())
}
