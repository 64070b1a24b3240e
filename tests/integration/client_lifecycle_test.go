//go:build integration
// +build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CodeYard/DevSession/backend/pkg/client"
	"github.com/CodeYard/DevSession/backend/tests/helpers/testutil"
)

// The shared backend runs with a 2s grace period, so these tests wait
// either well inside or well past that window.
const (
	insideGrace = 300 * time.Millisecond
	pastGrace   = 3500 * time.Millisecond
)

// TestReconnectWithinGrace verifies the session instance survives a
// disconnect shorter than the grace period: same creation time, same
// files, no recreation.
func TestReconnectWithinGrace(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	base := testutil.StartBackend(t)
	sid := testutil.NewSessionID(t)

	first, err := client.Connect(ctx, base, sid)
	require.NoError(t, err)
	require.NoError(t, first.WriteFile(ctx, "/draft.txt", "work in progress"))

	before, err := first.Info(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	time.Sleep(insideGrace)

	second, err := client.Connect(ctx, base, sid)
	require.NoError(t, err)
	defer second.Close()

	after, err := second.Info(ctx)
	require.NoError(t, err)
	assert.True(t, after.CreatedAt.Equal(before.CreatedAt), "session was recreated during the grace window")

	content, err := second.ReadFile(ctx, "/draft.txt")
	require.NoError(t, err)
	assert.Equal(t, "work in progress", content)
}

// TestGraceExpiryKeepsTheMirror verifies an expired session is torn
// down but its files remain on disk: a later connect mints a fresh
// session instance that reads the old tree through the mirror.
func TestGraceExpiryKeepsTheMirror(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	base := testutil.StartBackend(t)
	sid := testutil.NewSessionID(t)

	first, err := client.Connect(ctx, base, sid)
	require.NoError(t, err)
	require.NoError(t, first.WriteFile(ctx, "/persistent.txt", "outlives the session"))

	before, err := first.Info(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	time.Sleep(pastGrace)

	second, err := client.Connect(ctx, base, sid)
	require.NoError(t, err)
	defer second.Close()

	after, err := second.Info(ctx)
	require.NoError(t, err)
	assert.True(t, after.CreatedAt.After(before.CreatedAt), "expected a fresh session instance after expiry")

	content, err := second.ReadFile(ctx, "/persistent.txt")
	require.NoError(t, err)
	assert.Equal(t, "outlives the session", content)
}

// TestPurgeRemovesTheMirror verifies the purge flag is the one path
// that destroys data: after a purged delete the same path is gone even
// though the session identifier is reusable.
func TestPurgeRemovesTheMirror(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	base := testutil.StartBackend(t)
	sid := testutil.NewSessionID(t)

	c, err := client.Connect(ctx, base, sid)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteFile(ctx, "/secret.txt", "to be destroyed"))
	require.NoError(t, c.Delete(ctx, true))

	// Referencing the session recreates it over an empty tree.
	_, err = c.ReadFile(ctx, "/secret.txt")
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err), "got %v", err)

	require.NoError(t, c.WriteFile(ctx, "/fresh.txt", "clean slate"))
	content, err := c.ReadFile(ctx, "/fresh.txt")
	require.NoError(t, err)
	assert.Equal(t, "clean slate", content)
}

// TestDeleteIsNotIdempotent verifies a delete names an existing
// session: the second attempt reports not_found instead of inventing
// one to remove.
func TestDeleteIsNotIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping lifecycle test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c := testutil.Connect(t, testutil.NewSessionID(t))

	require.NoError(t, c.Delete(ctx, false))

	err := c.Delete(ctx, false)
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err), "got %v", err)
}
