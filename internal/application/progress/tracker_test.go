package progress

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/infrastructure/persistence/postgres"
)

type staticBlueprints struct{ bp *entity.Blueprint }

func (s staticBlueprints) Find(context.Context, string) (*entity.Blueprint, error) { return s.bp, nil }

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.Equal(t, 33.3, Percent(1, 3))
	assert.Equal(t, 100.0, Percent(4, 4))
}

func TestTracker_Snapshot(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	client := postgres.NewClientFromDB(db)
	require.NoError(t, client.AutoMigrate(ctx))

	parts := postgres.NewPartOutlineRepository(client)
	outlines := postgres.NewChapterOutlineRepository(client)
	chapters := postgres.NewChapterRepository(client)

	bp := entity.NewBlueprint("p1", "长夜")
	bp.TotalChapters = 100

	tracker := NewTracker(staticBlueprints{bp: bp}, parts, outlines, chapters)
	snap, err := tracker.Snapshot(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, snap.TotalParts)
	assert.False(t, snap.CanContinue)
	assert.Equal(t, 100, snap.TotalChapters)

	p1 := entity.NewPartOutline("p1", 1, 1, 25)
	p1.GenerationStatus = entity.PartStatusCompleted
	p1.Progress = 100
	p2 := entity.NewPartOutline("p1", 2, 26, 50)
	require.NoError(t, parts.CreateBatch(ctx, []*entity.PartOutline{p1, p2}))
	for n := 1; n <= 27; n++ {
		require.NoError(t, outlines.Save(ctx, entity.NewChapterOutline("p1", n, "t", "s")))
	}
	ch := entity.NewChapter("p1", 1)
	ch.MarkSuccessful()
	ch.WordCount = 1200
	require.NoError(t, chapters.Create(ctx, ch))
	require.NoError(t, chapters.Create(ctx, entity.NewChapter("p1", 2)))

	snap, err = tracker.Snapshot(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.TotalParts)
	assert.Equal(t, 1, snap.CompletedParts)
	assert.Equal(t, 50.0, snap.PartPercent)
	assert.Equal(t, 50, snap.CoveredChapters)
	assert.True(t, snap.CanContinue)
	assert.Equal(t, 27, snap.ChapterOutlines)
	assert.Equal(t, int64(2), snap.Chapters.Total)
	assert.Equal(t, int64(1), snap.Chapters.Successful)
	assert.Equal(t, int64(1200), snap.Chapters.TotalWords)
	require.Len(t, snap.Parts, 2)
	assert.Equal(t, 100, snap.Parts[0].Progress)
}
