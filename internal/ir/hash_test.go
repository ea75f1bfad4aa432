package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDDeterminism(t *testing.T) {
	id1, err := EventID("chain-1", 3, 2, "timer_fired")
	require.NoError(t, err)

	id2, err := EventID("chain-1", 3, 2, "timer_fired")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "EventID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestEventIDChangesWithInput(t *testing.T) {
	base := MustEventID("chain-1", 0, 1, "probe_completed")

	assert.NotEqual(t, base, MustEventID("chain-2", 0, 1, "probe_completed"), "different chain")
	assert.NotEqual(t, base, MustEventID("chain-1", 1, 1, "probe_completed"), "different generation")
	assert.NotEqual(t, base, MustEventID("chain-1", 0, 2, "probe_completed"), "different seq")
	assert.NotEqual(t, base, MustEventID("chain-1", 0, 1, "probe_failed"), "different kind")
}

func TestGenerationDigest(t *testing.T) {
	a, err := GenerationDigest(Object{"target": "tcp://db:5432", "generation": int64(4)})
	require.NoError(t, err)
	b, err := GenerationDigest(Object{"generation": int64(4), "target": "tcp://db:5432"})
	require.NoError(t, err)
	assert.Equal(t, a, b, "key order must not matter")

	c, err := GenerationDigest(Object{"generation": int64(5), "target": "tcp://db:5432"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain(DomainEvent, data), hashWithDomain(DomainGeneration, data))
}
