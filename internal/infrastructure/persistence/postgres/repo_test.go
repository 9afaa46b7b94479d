package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := NewClientFromDB(db)
	require.NoError(t, client.AutoMigrate(context.Background()))
	return client
}

func TestBlueprintRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewBlueprintRepository(newTestClient(t))

	got, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)

	bp := entity.NewBlueprint("p1", "长夜")
	bp.TotalChapters = 100
	bp.Characters = entity.MustFlexJSON([]map[string]string{{"name": "林舟"}})
	require.NoError(t, repo.Upsert(ctx, bp))

	bp2 := entity.NewBlueprint("p1", "长夜将明")
	bp2.TotalChapters = 120
	bp2.ChaptersPerPart = 30
	require.NoError(t, repo.Upsert(ctx, bp2))

	got, err = repo.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "长夜将明", got.Title)
	assert.Equal(t, 120, got.TotalChapters)
	assert.Equal(t, 30, got.ChaptersPerPart)
}

func TestPartOutlineRepository_RangeQueries(t *testing.T) {
	ctx := context.Background()
	repo := NewPartOutlineRepository(newTestClient(t))

	maxNum, err := repo.MaxNumber(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, maxNum)

	parts := []*entity.PartOutline{
		entity.NewPartOutline("p1", 1, 1, 10),
		entity.NewPartOutline("p1", 2, 11, 20),
		entity.NewPartOutline("p1", 3, 21, 25),
		entity.NewPartOutline("p2", 1, 1, 10),
	}
	parts[0].KeyEvents = entity.MustFlexJSON([]string{"启程"})
	require.NoError(t, repo.CreateBatch(ctx, parts))

	maxNum, err = repo.MaxNumber(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, maxNum)

	covering, err := repo.ListCovering(ctx, "p1", 15)
	require.NoError(t, err)
	require.Len(t, covering, 2)
	assert.Equal(t, 2, covering[0].PartNumber)

	first, err := repo.GetByNumber(ctx, "p1", 1)
	require.NoError(t, err)
	assert.JSONEq(t, `["启程"]`, string(first.KeyEvents))

	deleted, err := repo.DeleteFromNumber(ctx, "p1", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	left, err := repo.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, left, 1)

	other, err := repo.List(ctx, "p2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "其他项目不受影响")
}

func TestChapterOutlineRepository_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewChapterOutlineRepository(newTestClient(t))

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.Save(ctx, entity.NewChapterOutline("p1", i, "旧标题", "旧梗概")))
	}
	original, err := repo.GetByNumber(ctx, "p1", 2)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, entity.NewChapterOutline("p1", 2, "新标题", "新梗概")))
	updated, err := repo.GetByNumber(ctx, "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, original.ID, updated.ID)
	assert.Equal(t, "新标题", updated.Title)

	count, err := repo.CountRange(ctx, "p1", 2, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	deleted, err := repo.DeleteFromNumber(ctx, "p1", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	maxNum, err := repo.MaxNumber(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, maxNum)
}

func TestChapterRepository_StatsAndVersions(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	chapters := NewChapterRepository(client)
	versions := NewChapterVersionRepository(client)

	c1 := entity.NewChapter("p1", 1)
	c2 := entity.NewChapter("p1", 2)
	require.NoError(t, chapters.Create(ctx, c1))
	require.NoError(t, chapters.Create(ctx, c2))

	v := entity.NewChapterVersion(c1.ID, "v1", "openai", "山雨欲来", &entity.GenerationMetadata{Model: "gpt"})
	require.NoError(t, versions.Create(ctx, v))
	c1.MarkSuccessful()
	c1.Select(v)
	require.NoError(t, chapters.Update(ctx, c1))

	stats, err := chapters.Stats(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Successful)
	assert.EqualValues(t, 1, stats.WithContent)
	assert.EqualValues(t, 4, stats.TotalWords)

	ids, err := versions.ChapterIDsWithVersions(ctx, []string{c1.ID, c2.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{c1.ID}, ids)

	loaded, err := versions.GetByID(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Metadata)
	assert.Equal(t, "gpt", loaded.Metadata.Model)
}

func TestTxManager_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	txm := NewTxManager(client)
	outlines := NewChapterOutlineRepository(client)

	require.NoError(t, outlines.Save(ctx, entity.NewChapterOutline("p1", 1, "一", "")))

	boom := errors.New("boom")
	err := txm.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := outlines.DeleteFromNumber(ctx, "p1", 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	maxNum, err := outlines.MaxNumber(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, maxNum, "事务失败后删除应回滚")
}

func TestChapterRepository_UpdateDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	repo := NewChapterRepository(newTestClient(t))

	ch := entity.NewChapter("p1", 4)
	require.NoError(t, repo.Create(ctx, ch))
	ch.MarkFailed("timeout")
	require.NoError(t, repo.Update(ctx, ch))

	locked, err := repo.GetByIDForUpdate(ctx, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)
	assert.Equal(t, entity.ChapterStatusFailed, locked.Status)
	assert.Equal(t, "timeout", locked.LastError)

	_, err = repo.DeleteByIDs(ctx, []string{ch.ID})
	require.NoError(t, err)
	ch.MarkSuccessful()
	err = repo.Update(ctx, ch)
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.GetByNumber(ctx, "p1", 4)
	require.NoError(t, err)
	assert.Nil(t, got)
	locked, err = repo.GetByIDForUpdate(ctx, ch.ID)
	require.NoError(t, err)
	assert.Nil(t, locked)
}

func TestPartOutlineRepository_UpdateDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	repo := NewPartOutlineRepository(newTestClient(t))

	part := entity.NewPartOutline("p1", 1, 1, 10)
	require.NoError(t, repo.CreateBatch(ctx, []*entity.PartOutline{part}))
	part.Title = "启程"
	part.KeyEvents = entity.MustFlexJSON([]string{"离乡"})
	require.NoError(t, repo.Update(ctx, part))

	got, err := repo.GetByNumber(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, "启程", got.Title)
	assert.JSONEq(t, `["离乡"]`, string(got.KeyEvents))

	moved := *part
	moved.EndChapter = 12
	require.ErrorIs(t, repo.Update(ctx, &moved), repository.ErrNotFound, "区间变化视为不同分卷")

	_, err = repo.DeleteFromNumber(ctx, "p1", 1)
	require.NoError(t, err)
	require.ErrorIs(t, repo.Update(ctx, part), repository.ErrNotFound)
	parts, err := repo.List(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, parts)
}
