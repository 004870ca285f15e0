package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagine-it/storefront/internal/printful"
)

func TestMockupService_Create(t *testing.T) {
	renderer := &stubRenderer{}
	svc := NewMockupService(renderer)

	id, err := svc.Create(context.Background(), MockupRequest{ProductID: 71, VariantID: 4012, Placements: front("https://cdn/a.png")})
	require.NoError(t, err)
	assert.Equal(t, int64(900), id)
	assert.Equal(t, []int64{4012}, renderer.req.VariantIDs)
	require.Len(t, renderer.req.Placements, 1)
	assert.Equal(t, "dtg", renderer.req.Placements[0].Technique)
	assert.Equal(t, []printful.Layer{{Type: "file", URL: "https://cdn/a.png"}}, renderer.req.Placements[0].Layers)
}

func TestMockupService_Validation(t *testing.T) {
	svc := NewMockupService(&stubRenderer{})
	ctx := context.Background()

	_, err := svc.Create(ctx, MockupRequest{VariantID: 1, Placements: front("a")})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, MockupRequest{ProductID: 1, VariantID: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, MockupRequest{ProductID: 1, VariantID: 1, Placements: front("")})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMockupService_StatusAndWait(t *testing.T) {
	task := &printful.MockupTask{ID: 900, Status: printful.MockupCompleted}
	svc := NewMockupService(&stubRenderer{task: task})

	got, err := svc.Status(context.Background(), 900)
	require.NoError(t, err)
	assert.Equal(t, task, got)
	got, err = svc.Wait(context.Background(), 900)
	require.NoError(t, err)
	assert.Equal(t, printful.MockupCompleted, got.Status)
}
