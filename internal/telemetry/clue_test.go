package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"go.opentelemetry.io/otel/codes"
)

func TestTagsToAttrsPairsKeysAndValues(t *testing.T) {
	attrs := tagsToAttrs([]string{"a", "1", "b", "2"})
	a := assert.New(t)
	a.Len(attrs, 2)
	a.Equal("a", string(attrs[0].Key))
	a.Equal("b", string(attrs[1].Key))
}

func TestTagsToAttrsDropsTrailingUnmatchedKey(t *testing.T) {
	attrs := tagsToAttrs([]string{"a", "1", "orphan"})
	assert.Len(t, attrs, 1)
}

func TestTagsToAttrsEmptyInputYieldsEmptySlice(t *testing.T) {
	assert.Empty(t, tagsToAttrs(nil))
}

func TestNewClueBundleDoesNotPanicAgainstDefaultProviders(t *testing.T) {
	b := NewClue()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		b.Metrics.IncCounter("requests_total", 1, "route", "/execute")
		b.Metrics.RecordTimer("latency_seconds", 0)
		b.Metrics.RecordGauge("queue_depth", 3)

		spanCtx, span := b.Tracer.Start(ctx, "op")
		_ = spanCtx
		span.SetStatus(codes.Ok, "done")
		span.End()
	})
}
