package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
)

const (
	defaultChunkSizeRunes    = 800
	defaultChunkOverlapRunes = 80
	defaultEmbeddingBatch    = 32
)

// Indexer 维护章节选定版本在向量库中的片段
type Indexer struct {
	embedder embedding.Embedder
	vector   VectorRepository

	embeddingBatchSize int
	chunkSizeRunes     int
	chunkOverlapRunes  int
}

func NewIndexer(embedder embedding.Embedder, vectorRepo VectorRepository, embeddingBatchSize int) *Indexer {
	bs := embeddingBatchSize
	if bs <= 0 {
		bs = defaultEmbeddingBatch
	}
	return &Indexer{
		embedder:           embedder,
		vector:             vectorRepo,
		embeddingBatchSize: bs,
		chunkSizeRunes:     defaultChunkSizeRunes,
		chunkOverlapRunes:  defaultChunkOverlapRunes,
	}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil
}

// IndexVersion 用选定版本替换章节已有片段；空正文只做删除。
func (i *Indexer) IndexVersion(ctx context.Context, req IndexRequest) error {
	if strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.ChapterID) == "" {
		return fmt.Errorf("project_id and chapter_id are required")
	}
	if !i.Enabled() {
		return ErrVectorDisabled
	}
	if err := i.vector.EnsureStorySegmentsCollection(ctx); err != nil {
		return err
	}
	if err := i.vector.DeleteSegmentsByChapter(ctx, req.ProjectID, req.ChapterID); err != nil {
		return err
	}

	chunks := splitByRunes(req.Content, i.chunkSizeRunes, i.chunkOverlapRunes)
	if len(chunks) == 0 {
		return nil
	}

	embedInputs := make([]string, 0, len(chunks))
	segments := make([]*VectorStorySegment, 0, len(chunks))
	for idx, chunk := range chunks {
		meta := SegmentMeta{
			ChapterID:     req.ChapterID,
			ChapterNumber: req.ChapterNumber,
			ChapterTitle:  strings.TrimSpace(req.ChapterTitle),
			VersionID:     req.VersionID,
			VersionLabel:  req.VersionLabel,
			Chunk:         idx,
		}

		embedText := chunk
		if meta.ChapterTitle != "" {
			embedText = fmt.Sprintf("第%d章 %s\n%s", req.ChapterNumber, meta.ChapterTitle, chunk)
		}
		embedInputs = append(embedInputs, embedText)
		segments = append(segments, &VectorStorySegment{
			ID:            uuid.NewString(),
			ProjectID:     req.ProjectID,
			ChapterID:     req.ChapterID,
			ChapterNumber: int64(req.ChapterNumber),
			VersionID:     req.VersionID,
			TextContent:   encodeSegmentText(meta, chunk),
		})
	}

	vectors, err := i.embedBatch(ctx, embedInputs)
	if err != nil {
		return err
	}
	for idx := range segments {
		segments[idx].Vector = vectors[idx]
	}
	return i.vector.InsertSegments(ctx, req.ProjectID, segments)
}

func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += i.embeddingBatchSize {
		end := min(start+i.embeddingBatchSize, len(texts))
		v64, err := i.embedder.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(v64) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d inputs", len(v64), end-start)
		}
		for _, vec := range v64 {
			f32 := make([]float32, len(vec))
			for k, x := range vec {
				f32[k] = float32(x)
			}
			out = append(out, f32)
		}
	}
	return out, nil
}
