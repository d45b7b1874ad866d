package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/concept-modules/internal/nodes"
)

// TestTrackerMarksNodesPerLearner keeps sets separate and idempotent.
func TestTrackerMarksNodesPerLearner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := New()
	require.NoError(t, tr.MarkComplete(ctx, "ada", "memory"))
	require.NoError(t, tr.MarkComplete(ctx, "ada", "concurrency"))
	require.NoError(t, tr.MarkComplete(ctx, "ada", "memory"))
	require.NoError(t, tr.MarkComplete(ctx, "", "intro"))

	got, err := tr.Completed(ctx, "ada")
	require.NoError(t, err)
	require.Equal(t, []string{"concurrency", "memory"}, got)

	anon, err := tr.Completed(ctx, nodes.AnonymousLearner)
	require.NoError(t, err)
	require.Equal(t, []string{"intro"}, anon)

	none, err := tr.Completed(ctx, "grace")
	require.NoError(t, err)
	require.Empty(t, none)
}

// TestTrackerRejectsBlankNode refuses empty node ids.
func TestTrackerRejectsBlankNode(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, New().MarkComplete(context.Background(), "ada", " "), nodes.ErrEmptyNode)
}
