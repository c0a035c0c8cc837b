package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerNone(t *testing.T) {
	shutdown, err := InitTracer(Config{ServiceName: "rendezvous", Exporter: ExporterNone})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracerUnsupported(t *testing.T) {
	_, err := InitTracer(Config{ServiceName: "rendezvous", Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")
}

func TestGetTracer(t *testing.T) {
	_, span := GetTracer("test").Start(context.Background(), "op")
	defer span.End()

	assert.NotNil(t, span)
}
