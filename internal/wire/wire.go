//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"z-novel-plan-api/internal/application/blueprint"
	"z-novel-plan-api/internal/application/content"
	"z-novel-plan-api/internal/application/generation"
	"z-novel-plan-api/internal/application/outline"
	"z-novel-plan-api/internal/application/progress"
	"z-novel-plan-api/internal/application/retrieval"
	"z-novel-plan-api/internal/config"
	"z-novel-plan-api/internal/domain/repository"
	"z-novel-plan-api/internal/infrastructure/llm"
	"z-novel-plan-api/internal/infrastructure/messaging"
	"z-novel-plan-api/internal/infrastructure/persistence/postgres"
	"z-novel-plan-api/internal/interfaces/http/handler"
	"z-novel-plan-api/internal/interfaces/http/router"
	workflowport "z-novel-plan-api/internal/workflow/port"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		VectorSet,
		GenerationSet,
		ContentSet,
		PlanningSet,
		messaging.NewRetrievalPublisher,
		ProvideAppRetrievalRequester,
		HTTPSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化 job-worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		VectorSet,
		GenerationSet,
		ContentSet,
		ProvideWorkerRetrievalRequester,
		WorkerSet,
	)
	return nil, nil, nil
}

// InitializePostgresOnly 仅初始化 PostgreSQL（用于迁移）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	wire.Build(ProvidePostgresClient)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewBlueprintRepository,
	postgres.NewPartOutlineRepository,
	postgres.NewChapterOutlineRepository,
	postgres.NewChapterRepository,
	postgres.NewChapterVersionRepository,
	postgres.NewChapterEvaluationRepository,
	postgres.NewJobRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.BlueprintRepository), new(*postgres.BlueprintRepository)),
	wire.Bind(new(repository.PartOutlineRepository), new(*postgres.PartOutlineRepository)),
	wire.Bind(new(repository.ChapterOutlineRepository), new(*postgres.ChapterOutlineRepository)),
	wire.Bind(new(repository.ChapterRepository), new(*postgres.ChapterRepository)),
	wire.Bind(new(repository.ChapterVersionRepository), new(*postgres.ChapterVersionRepository)),
	wire.Bind(new(repository.ChapterEvaluationRepository), new(*postgres.ChapterEvaluationRepository)),
	wire.Bind(new(repository.JobRepository), new(*postgres.JobRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideCache,
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(content.JobPublisher), new(*messaging.Producer)),
)

// VectorSet 向量检索（Milvus 与 Embedding 均可选，不可达时不阻塞启动）
var VectorSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideRetrievalVectorRepositoryOptional,
	ProvideEmbedderOptional,
	ProvideRetrievalIndexer,
	retrieval.NewPurger,
	retrieval.NewDirectRequester,
)

// GenerationSet 生成后端
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	wire.Bind(new(workflowport.ChatModelFactory), new(*llm.EinoFactory)),
	generation.NewBackend,
	wire.Bind(new(workflowport.Generator), new(*generation.Backend)),
)

// ContentSet 正文生成（API 与 job-worker 共用）
var ContentSet = wire.NewSet(
	ProvideBlueprintService,
	wire.Bind(new(content.BlueprintFinder), new(*blueprint.Service)),
	ProvideIndexRequester,
	ProvidePipeline,
	content.NewJobRunner,
)

// PlanningSet 大纲规划、级联删除、版本选定与进度
var PlanningSet = wire.NewSet(
	wire.Bind(new(outline.BlueprintStore), new(*blueprint.Service)),
	wire.Bind(new(progress.BlueprintFinder), new(*blueprint.Service)),
	ProvidePurgeRequester,
	outline.NewCascadeEngine,
	ProvidePartPlanner,
	ProvideChapterOutlineGenerator,
	content.NewSelector,
	progress.NewTracker,
)

// HTTPSet 处理器与路由
var HTTPSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideRateLimiter,
	handler.NewBlueprintHandler,
	handler.NewPartOutlineHandler,
	handler.NewChapterOutlineHandler,
	ProvideChapterHandler,
	handler.NewJobHandler,
	ProvideProgressHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// WorkerSet job-worker 消息处理器
var WorkerSet = wire.NewSet(
	ProvideWorkerHandlers,
	wire.Struct(new(Worker), "*"),
)
