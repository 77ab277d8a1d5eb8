package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/frontdesk-api/internal/models"
	appErrors "github.com/noah-isme/frontdesk-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientIsAlwaysEmpty(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "visitor:status:v-1", models.PendingStatus{HasPendingDeletion: true}, time.Minute))

	var status models.PendingStatus
	err := repo.Get(ctx, "visitor:status:v-1", &status)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.False(t, status.HasPendingDeletion)

	gen, err := repo.Incr(ctx, "visitor:status-gen:v-1", time.Hour)
	assert.NoError(t, err)
	assert.Zero(t, gen)

	assert.NoError(t, repo.Delete(ctx, "visitor:status:v-1"))
	assert.NoError(t, repo.DeleteByPattern(ctx, "visitor:status:*"))
}
