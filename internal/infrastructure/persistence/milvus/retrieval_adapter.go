package milvus

import (
	"context"

	"z-novel-plan-api/internal/application/retrieval"
)

// RetrievalVectorRepository 将 Repository 适配为 retrieval.VectorRepository
type RetrievalVectorRepository struct {
	repo *Repository
}

func NewRetrievalVectorRepository(repo *Repository) *RetrievalVectorRepository {
	return &RetrievalVectorRepository{repo: repo}
}

var _ retrieval.VectorRepository = (*RetrievalVectorRepository)(nil)

func (r *RetrievalVectorRepository) EnsureStorySegmentsCollection(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.EnsureStorySegmentsCollection(ctx)
}

func (r *RetrievalVectorRepository) DeleteSegmentsByVersion(ctx context.Context, projectID, versionID string) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.DeleteSegmentsByVersion(ctx, projectID, versionID)
}

func (r *RetrievalVectorRepository) DeleteSegmentsByChapter(ctx context.Context, projectID, chapterID string) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.DeleteSegmentsByChapter(ctx, projectID, chapterID)
}

func (r *RetrievalVectorRepository) InsertSegments(ctx context.Context, projectID string, segments []*retrieval.VectorStorySegment) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}

	out := make([]*StorySegment, 0, len(segments))
	for _, s := range segments {
		if s == nil {
			continue
		}
		out = append(out, &StorySegment{
			ID:            s.ID,
			ProjectID:     s.ProjectID,
			ChapterID:     s.ChapterID,
			ChapterNumber: s.ChapterNumber,
			VersionID:     s.VersionID,
			TextContent:   s.TextContent,
			Vector:        s.Vector,
		})
	}
	return r.repo.InsertSegments(ctx, projectID, out)
}
