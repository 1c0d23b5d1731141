package ids

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestChildDerivesNestedID(t *testing.T) {
	parent := SessionID("root")
	child := Child(parent, "research")
	assert.Contains(t, string(child), "root:sub_research_")
	assert.Equal(t, 1, Depth(child))
	assert.Equal(t, parent, Root(child))
}

func TestDepthCountsSeparators(t *testing.T) {
	assert.Equal(t, 0, Depth(SessionID("root")))
	assert.Equal(t, 1, Depth(SessionID("root:sub_a_1")))
	assert.Equal(t, 2, Depth(SessionID("root:sub_a_1:sub_b_2")))
}

func TestRootReturnsTopLevelAncestor(t *testing.T) {
	assert.Equal(t, SessionID("root"), Root(SessionID("root")))
	assert.Equal(t, SessionID("root"), Root(SessionID("root:sub_a_1:sub_b_2")))
}

func TestNewSessionIDAndRunIDAreUnique(t *testing.T) {
	assert.NotEqual(t, NewSessionID(), NewSessionID())
	assert.NotEqual(t, NewRunID(), NewRunID())
}

// TestDepthPropertyIncrementsByOnePerChild verifies that repeated Child
// derivation increases Depth by exactly one per level, the invariant
// internal/spawner's max-nesting-depth check relies on.
func TestDepthPropertyIncrementsByOnePerChild(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("depth grows by exactly one per Child call", prop.ForAll(
		func(tags []string) bool {
			id := NewSessionID()
			for i, tag := range tags {
				id = Child(id, tag)
				if Depth(id) != i+1 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.Identifier()),
	))

	properties.TestingRun(t)
}
