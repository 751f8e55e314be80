package services_test

import (
	"context"
	"testing"

	"podharvest/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithChannel(ctx, "tech talks")
	ctx = services.WithVideoID(ctx, "abc123")
	ctx = services.WithStage(ctx, "download")
	ctx = services.WithRunID(ctx, "run-123")

	if channel, ok := services.ChannelFromContext(ctx); !ok || channel != "tech talks" {
		t.Fatalf("unexpected channel: %v %v", channel, ok)
	}
	if id, ok := services.VideoIDFromContext(ctx); !ok || id != "abc123" {
		t.Fatalf("unexpected video id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "download" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-123" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
