package ctxutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRequestDataRoundTrip(t *testing.T) {
	if got := UserID(context.Background()); got != uuid.Nil {
		t.Fatalf("expected nil user id on empty ctx, got %s", got)
	}
	id := uuid.New()
	ctx := WithRequestData(context.Background(), &RequestData{UserID: id})
	if got := UserID(ctx); got != id {
		t.Fatalf("user id mismatch: got %s want %s", got, id)
	}
	ctx = WithTraceData(ctx, &TraceData{TraceID: "t", RequestID: "r"})
	if td := GetTraceData(ctx); td == nil || td.TraceID != "t" {
		t.Fatalf("trace data lost: %+v", td)
	}
	if GetRequestData(ctx) == nil {
		t.Fatalf("request data lost after adding trace data")
	}
}
