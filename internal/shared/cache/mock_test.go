package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	got, err := c.GetJobState(ctx, "R1")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := &JobState{Status: "PROCESSING", FramesTotal: 3}
	require.NoError(t, c.SetJobState(ctx, "R1", state))
	state.FramesTotal = 99 // 写入后修改不影响缓存

	got, err = c.GetJobState(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", got.ReportID)
	assert.Equal(t, 3, got.FramesTotal)

	require.NoError(t, c.DeleteJobState(ctx, "R1"))
	got, _ = c.GetJobState(ctx, "R1")
	assert.Nil(t, got)
}
