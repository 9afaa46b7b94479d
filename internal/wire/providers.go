package wire

import (
	"context"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"z-novel-plan-api/internal/application/blueprint"
	"z-novel-plan-api/internal/application/content"
	"z-novel-plan-api/internal/application/outline"
	"z-novel-plan-api/internal/application/progress"
	"z-novel-plan-api/internal/application/retrieval"
	"z-novel-plan-api/internal/config"
	"z-novel-plan-api/internal/domain/repository"
	infraembedding "z-novel-plan-api/internal/infrastructure/embedding"
	"z-novel-plan-api/internal/infrastructure/messaging"
	"z-novel-plan-api/internal/infrastructure/persistence/milvus"
	"z-novel-plan-api/internal/infrastructure/persistence/postgres"
	"z-novel-plan-api/internal/infrastructure/persistence/redis"
	"z-novel-plan-api/internal/interfaces/http/handler"
	"z-novel-plan-api/internal/interfaces/http/middleware"
	"z-novel-plan-api/internal/interfaces/worker"
	workflowport "z-novel-plan-api/internal/workflow/port"
	"z-novel-plan-api/pkg/logger"
)

// Worker job-worker 依赖容器
type Worker struct {
	Redis    *redis.Client
	Handlers *worker.Handlers
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideCache 提供读穿缓存
func ProvideCache(client *redis.Client) *redis.Cache {
	return redis.NewCache(client)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideMilvusClientOptional 未开启检索索引或 Milvus 不可达时返回 nil
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	if !cfg.Features.RetrievalIndex {
		return nil, func() {}, nil
	}
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector features disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideRetrievalVectorRepositoryOptional(client *milvus.Client) retrieval.VectorRepository {
	if client == nil {
		return nil
	}
	return milvus.NewRetrievalVectorRepository(milvus.NewRepository(client))
}

func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) (einoembedding.Embedder, error) {
	if !cfg.Features.RetrievalIndex {
		return nil, nil
	}
	embedder, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector features disabled", "error", err.Error())
		return nil, nil
	}
	return embedder, nil
}

func ProvideRetrievalIndexer(cfg *config.Config, embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository) *retrieval.Indexer {
	return retrieval.NewIndexer(embedder, vectorRepo, cfg.Embedding.BatchSize)
}

// ProvideAppRetrievalRequester API 网关：异步模式下投递到 job-worker，否则进程内执行
func ProvideAppRetrievalRequester(cfg *config.Config, publisher *messaging.RetrievalPublisher, direct *retrieval.DirectRequester) retrieval.Requester {
	switch {
	case !cfg.Features.RetrievalIndex:
		return retrieval.NopRequester{}
	case cfg.Features.AsyncGeneration:
		return publisher
	default:
		return direct
	}
}

// ProvideWorkerRetrievalRequester job-worker 持有向量库连接，直接执行
func ProvideWorkerRetrievalRequester(cfg *config.Config, direct *retrieval.DirectRequester) retrieval.Requester {
	if !cfg.Features.RetrievalIndex {
		return retrieval.NopRequester{}
	}
	return direct
}

func ProvidePurgeRequester(r retrieval.Requester) retrieval.PurgeRequester { return r }

func ProvideIndexRequester(r retrieval.Requester) retrieval.IndexRequester { return r }

// ProvideBlueprintService blueprint_cache_ttl 非正时不走缓存
func ProvideBlueprintService(repo repository.BlueprintRepository, cache *redis.Cache, cfg *config.Config) *blueprint.Service {
	ttl := cfg.Features.BlueprintCache
	if ttl <= 0 || cache == nil {
		return blueprint.NewService(repo, nil, 0)
	}
	return blueprint.NewService(repo, cache, ttl)
}

func ProvidePartPlanner(
	txMgr repository.Transactor,
	blueprints outline.BlueprintStore,
	parts repository.PartOutlineRepository,
	outlines repository.ChapterOutlineRepository,
	cascade *outline.CascadeEngine,
	generator workflowport.Generator,
	cfg *config.Config,
) *outline.PartPlanner {
	return outline.NewPartPlanner(txMgr, blueprints, parts, outlines, cascade, generator, outline.PlannerConfig{
		DefaultChaptersPerPart: cfg.Planning.DefaultChaptersPerPart,
		MaxTotalChapters:       cfg.Planning.MaxTotalChapters,
	})
}

func ProvideChapterOutlineGenerator(
	txMgr repository.Transactor,
	blueprints outline.BlueprintStore,
	parts repository.PartOutlineRepository,
	outlines repository.ChapterOutlineRepository,
	cascade *outline.CascadeEngine,
	generator workflowport.Generator,
	cfg *config.Config,
) *outline.ChapterOutlineGenerator {
	return outline.NewChapterOutlineGenerator(txMgr, blueprints, parts, outlines, cascade, generator, cfg.Planning.OutlineBatchSize)
}

func ProvidePipeline(
	txMgr repository.Transactor,
	blueprints content.BlueprintFinder,
	outlines repository.ChapterOutlineRepository,
	chapters repository.ChapterRepository,
	versions repository.ChapterVersionRepository,
	generator workflowport.Generator,
	indexer retrieval.IndexRequester,
	cfg *config.Config,
) *content.Pipeline {
	return content.NewPipeline(txMgr, blueprints, outlines, chapters, versions, generator, indexer, content.Config{
		DefaultVersionCount: cfg.Planning.DefaultVersionCount,
		MaxVersionCount:     cfg.Planning.MaxVersionCount,
		TargetWordCount:     cfg.Planning.TargetWordCount,
	})
}

// ProvideHealthHandler Postgres 与 Redis 为必需依赖，Milvus 可选
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *handler.HealthHandler {
	h := handler.NewHealthHandler(cfg.App.Version).
		Require("postgres", pg).
		Require("redis", redisClient)
	if milvusClient != nil {
		h.Optional("milvus", milvusClient)
	} else {
		h.Optional("milvus", nil)
	}
	return h
}

func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	return middleware.NewRedisRateLimiter(client.Redis())
}

func ProvideChapterHandler(cfg *config.Config, pipeline *content.Pipeline, jobs *content.JobRunner, selector *content.Selector) *handler.ChapterHandler {
	return handler.NewChapterHandler(pipeline, jobs, selector, cfg.Features.AsyncGeneration)
}

func ProvideProgressHandler(cfg *config.Config, tracker *progress.Tracker) *handler.ProgressHandler {
	return handler.NewProgressHandler(tracker, cfg.Planning.ProgressPushInterval, cfg.Security.CORS.AllowedOrigins)
}

func ProvideWorkerHandlers(
	jobs *content.JobRunner,
	purger *retrieval.Purger,
	indexer *retrieval.Indexer,
	chapters repository.ChapterRepository,
	versions repository.ChapterVersionRepository,
	outlines repository.ChapterOutlineRepository,
) *worker.Handlers {
	return worker.NewHandlers(jobs, purger, indexer, chapters, versions, outlines)
}
