package node

import (
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"lattice"
	"lattice/api"
)

func TestRequestsProduceSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, n := startNode(t, testOptions(t))

	var status lattice.NodeStatus
	request(t, n, api.Get, "node", nil, &status)
	request(t, n, api.Get, "node/bogus", nil, nil)

	var served, rejected bool
	for _, span := range recorder.Ended() {
		if span.Name() != "node.request" {
			continue
		}
		var path string
		for _, attr := range span.Attributes() {
			if attr.Key == "request.path" {
				path = attr.Value.AsString()
			}
		}
		switch path {
		case "node":
			served = true
		case "node/bogus":
			rejected = true
			if span.Status().Code != codes.Error {
				t.Fatalf("unknown endpoint span status = %+v", span.Status())
			}
		}
	}
	if !served {
		t.Fatal("no span recorded for the served request")
	}
	if !rejected {
		t.Fatal("no span recorded for the rejected request")
	}
}
