package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rudi77/taskforge/internal/model"
	"github.com/rudi77/taskforge/internal/modelclient"
)

type stubClient struct {
	text string
	err  error
}

func (s stubClient) Complete(context.Context, modelclient.Request) (modelclient.Response, error) {
	if s.err != nil {
		return modelclient.Response{}, s.err
	}
	return modelclient.Response{Content: []model.Part{model.TextPart{Text: s.text}}}, nil
}

func TestClassifyReturnsComplexAboveThreshold(t *testing.T) {
	c := New(stubClient{text: `{"complexity":"complex","confidence":0.9,"reason":"needs decomposition"}`})
	v := c.Classify(context.Background(), "build a distributed system")
	assert.Equal(t, ComplexityComplex, v.Complexity)
	assert.Equal(t, 0.9, v.Confidence)
}

func TestClassifyFallsBackToSimpleBelowThreshold(t *testing.T) {
	c := New(stubClient{text: `{"complexity":"complex","confidence":0.5,"reason":"unsure"}`})
	v := c.Classify(context.Background(), "do something")
	assert.Equal(t, ComplexitySimple, v.Complexity)
}

func TestClassifyFallsBackToSimpleOnClientError(t *testing.T) {
	c := New(stubClient{err: assert.AnError})
	v := c.Classify(context.Background(), "anything")
	assert.Equal(t, ComplexitySimple, v.Complexity)
	assert.Contains(t, v.Reason, "classification call failed")
}

func TestClassifyFallsBackToSimpleOnMalformedJSON(t *testing.T) {
	c := New(stubClient{text: "not json at all"})
	v := c.Classify(context.Background(), "anything")
	assert.Equal(t, ComplexitySimple, v.Complexity)
}

func TestClassifyExtractsJSONSurroundedByProse(t *testing.T) {
	c := New(stubClient{text: "Sure, here you go: {\"complexity\":\"complex\",\"confidence\":0.95,\"reason\":\"r\"} thanks!"})
	v := c.Classify(context.Background(), "anything")
	assert.Equal(t, ComplexityComplex, v.Complexity)
}

func TestClassifyWithThresholdOverridesConfiguredThresholdWithoutMutatingIt(t *testing.T) {
	c := New(stubClient{text: `{"complexity":"complex","confidence":0.6,"reason":"r"}`})
	v := c.ClassifyWithThreshold(context.Background(), "m", 0.5)
	assert.Equal(t, ComplexityComplex, v.Complexity)
	assert.Equal(t, DefaultConfidenceThreshold, c.ConfidenceThreshold)
}
