package budget

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rudi77/taskforge/internal/errs"
	"github.com/rudi77/taskforge/internal/model"
)

func TestCharsPerTokenCountsAtLeastOneForNonEmptyString(t *testing.T) {
	c := CharsPerToken{Factor: 4}
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("ab"))
	assert.Equal(t, 2, c.Count("abcdefgh"))
}

func TestShouldCompressAndIsOverBudgetThresholds(t *testing.T) {
	b := New()
	b.MaxInputTokens = 100
	b.CompressionTrigger = 80

	assert.False(t, b.ShouldCompress(79))
	assert.True(t, b.ShouldCompress(80))
	assert.False(t, b.IsOverBudget(100))
	assert.True(t, b.IsOverBudget(101))
}

func TestPreflightReturnsUnmodifiedMessagesWhenUnderBudget(t *testing.T) {
	b := New()
	msgs := []model.Message{model.NewTextMessage(model.RoleUser, "short")}

	out, err := b.Preflight(msgs, nil, "", 1000)
	require.NoError(t, err)
	assert.Equal(t, msgs, out)
}

func TestPreflightSanitizesThenFallsBackThenFails(t *testing.T) {
	b := New()
	b.MaxInputTokens = 5
	b.Counter = CharsPerToken{Factor: 1} // 1 token per char, easy to exceed

	system := model.NewTextMessage(model.RoleSystem, "sys")
	long := model.NewTextMessage(model.RoleUser, "this message is far too long to fit")

	_, err := b.Preflight([]model.Message{system, long}, nil, "", 2)
	require.Error(t, err)
	assert.Equal(t, errs.KindBudgetExceeded, errs.KindOf(err))
}

func TestFallbackTailKeepsLeadingSystemMessages(t *testing.T) {
	msgs := []model.Message{
		model.NewTextMessage(model.RoleSystem, "sys"),
		model.NewTextMessage(model.RoleUser, "1"),
		model.NewTextMessage(model.RoleUser, "2"),
		model.NewTextMessage(model.RoleUser, "3"),
	}
	tail := fallbackTail(msgs, 2)
	require.Len(t, tail, 3)
	assert.Equal(t, model.RoleSystem, tail[0].Role)
	assert.Equal(t, "2", tail[1].Text())
	assert.Equal(t, "3", tail[2].Text())
}

// TestEstimatePropertyMonotonicInMessageCount verifies that Estimate never
// decreases as more messages are appended, the invariant Preflight's
// escalating sanitize/fallback/fail ladder relies on.
func TestEstimatePropertyMonotonicInMessageCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("appending a message never decreases the estimate", prop.ForAll(
		func(texts []string) bool {
			b := New()
			var msgs []model.Message
			prev := b.Estimate(msgs, nil, "")
			for _, text := range texts {
				msgs = append(msgs, model.NewTextMessage(model.RoleUser, text))
				next := b.Estimate(msgs, nil, "")
				if next < prev {
					return false
				}
				prev = next
			}
			return true
		},
		gen.SliceOfN(6, gen.AlphaString()),
	))

	properties.TestingRun(t)
}
