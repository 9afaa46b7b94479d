package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVectorRepo struct {
	deletedByID  []string
	deletedByVer []string
	inserted     []*VectorStorySegment
	deleteErr    error
	ensureCalled int
}

func (f *fakeVectorRepo) EnsureStorySegmentsCollection(context.Context) error {
	f.ensureCalled++
	return nil
}

func (f *fakeVectorRepo) DeleteSegmentsByVersion(_ context.Context, _ string, versionID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedByVer = append(f.deletedByVer, versionID)
	return nil
}

func (f *fakeVectorRepo) DeleteSegmentsByChapter(_ context.Context, _ string, chapterID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedByID = append(f.deletedByID, chapterID)
	return nil
}

func (f *fakeVectorRepo) InsertSegments(_ context.Context, _ string, segments []*VectorStorySegment) error {
	f.inserted = append(f.inserted, segments...)
	return nil
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{float64(i), 1}
	}
	return out, nil
}

func TestSplitByRunes(t *testing.T) {
	assert.Nil(t, splitByRunes("   ", 10, 2))
	assert.Equal(t, []string{"短文本"}, splitByRunes("短文本", 10, 2))

	chunks := splitByRunes(strings.Repeat("字", 25), 10, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, len([]rune(chunks[0])))
	assert.Equal(t, 9, len([]rune(chunks[2])))
}

func TestSegmentMeta_EncodeDecode(t *testing.T) {
	text := encodeSegmentText(SegmentMeta{ChapterID: "c1", ChapterNumber: 3}, "正文")
	meta, body := DecodeSegmentText(text)
	assert.Equal(t, "c1", meta.ChapterID)
	assert.Equal(t, 3, meta.ChapterNumber)
	assert.Equal(t, "正文", body)

	meta, body = DecodeSegmentText("plain")
	assert.Empty(t, meta.ChapterID)
	assert.Equal(t, "plain", body)
}

func TestIndexer_IndexVersion(t *testing.T) {
	vec := &fakeVectorRepo{}
	emb := &fakeEmbedder{}
	idx := NewIndexer(emb, vec, 2)

	err := idx.IndexVersion(context.Background(), IndexRequest{
		ProjectID:     "p1",
		ChapterID:     "c7",
		ChapterNumber: 7,
		ChapterTitle:  "夜袭",
		VersionID:     "v1",
		Content:       strings.Repeat("剑", 2000),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"c7"}, vec.deletedByID)
	require.Len(t, vec.inserted, 3)
	assert.Equal(t, 2, emb.calls)
	for _, seg := range vec.inserted {
		assert.Equal(t, int64(7), seg.ChapterNumber)
		assert.Equal(t, "v1", seg.VersionID)
		assert.Len(t, seg.Vector, 2)
	}
}

func TestIndexer_EmptyContentOnlyDeletes(t *testing.T) {
	vec := &fakeVectorRepo{}
	idx := NewIndexer(&fakeEmbedder{}, vec, 0)

	require.NoError(t, idx.IndexVersion(context.Background(), IndexRequest{ProjectID: "p1", ChapterID: "c1"}))
	assert.Equal(t, []string{"c1"}, vec.deletedByID)
	assert.Empty(t, vec.inserted)
}

func TestIndexer_Disabled(t *testing.T) {
	idx := NewIndexer(nil, nil, 0)
	err := idx.IndexVersion(context.Background(), IndexRequest{ProjectID: "p1", ChapterID: "c1"})
	assert.ErrorIs(t, err, ErrVectorDisabled)
}

func TestPurger_Purge(t *testing.T) {
	vec := &fakeVectorRepo{}
	p := NewPurger(vec)

	err := p.Purge(context.Background(), PurgeRequest{ProjectID: "p1", FromChapter: 26, ChapterIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, vec.deletedByID)
	assert.Empty(t, vec.deletedByVer)
}

func TestPurger_CascadeWithoutChaptersDeletesNothing(t *testing.T) {
	vec := &fakeVectorRepo{}
	p := NewPurger(vec)

	// 只删了大纲的级联：同号新章节可能已经入库，不能按章节号删除
	require.NoError(t, p.Purge(context.Background(), PurgeRequest{ProjectID: "p1", FromChapter: 3}))
	assert.Empty(t, vec.deletedByID)
	assert.Empty(t, vec.deletedByVer)
}

func TestPurger_ByVersion(t *testing.T) {
	vec := &fakeVectorRepo{}
	p := NewPurger(vec)

	err := p.Purge(context.Background(), PurgeRequest{ProjectID: "p1", ChapterIDs: []string{"c1"}, VersionID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, vec.deletedByVer)
	assert.Empty(t, vec.deletedByID, "other versions of the chapter keep their segments")
}

func TestPurger_PropagatesError(t *testing.T) {
	boom := errors.New("milvus down")
	p := NewPurger(&fakeVectorRepo{deleteErr: boom})

	err := p.Purge(context.Background(), PurgeRequest{ProjectID: "p1", ChapterIDs: []string{"c1"}})
	assert.ErrorIs(t, err, boom)

	assert.Error(t, p.Purge(context.Background(), PurgeRequest{}))
}
