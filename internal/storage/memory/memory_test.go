package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
	"github.com/slok/kage/internal/storage/memory"
)

var t0 = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func TestRepositoryExecutions(t *testing.T) {
	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository) error
		expErr  bool
	}{
		"Creating an execution should work.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				rec := model.ExecutionRecord{ID: "a", Status: model.ExecutionStatusDone, DecidedAt: t0}
				require.NoError(t, repo.CreateExecution(ctx, rec))

				got, err := repo.ListExecutions(ctx, 0)
				require.NoError(t, err)
				assert.Equal(t, []model.ExecutionRecord{rec}, got)
				return nil
			},
		},

		"Creating a duplicated execution should fail.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				rec := model.ExecutionRecord{ID: "a", DecidedAt: t0}
				require.NoError(t, repo.CreateExecution(ctx, rec))
				return repo.CreateExecution(ctx, rec)
			},
			expErr: true,
		},

		"Creating an execution without id should fail.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.CreateExecution(ctx, model.ExecutionRecord{})
			},
			expErr: true,
		},

		"Listing should return the newest first and honor the limit.": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				for i, id := range []string{"a", "b", "c"} {
					rec := model.ExecutionRecord{ID: id, DecidedAt: t0.Add(time.Duration(i) * time.Second)}
					require.NoError(t, repo.CreateExecution(ctx, rec))
				}

				got, err := repo.ListExecutions(ctx, 2)
				require.NoError(t, err)
				require.Len(t, got, 2)
				assert.Equal(t, "c", got[0].ID)
				assert.Equal(t, "b", got[1].ID)
				return nil
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, repo)
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRepositorySettings(t *testing.T) {
	ctx := context.Background()
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	_, err = repo.GetSettings(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)

	s := model.Settings{RootDir: "/jail", Provider: "openai", Model: "gpt-4o-mini"}
	require.NoError(t, repo.SaveSettings(ctx, s))

	got, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, s, *got)

	// Modifying the returned copy should not change the stored settings.
	got.RootDir = "/other"
	got2, err := repo.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/jail", got2.RootDir)

	err = repo.SaveSettings(ctx, model.Settings{})
	assert.ErrorIs(t, err, model.ErrNotValid)
}
