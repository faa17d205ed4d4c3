// Package app 把配置装配成可运行的药房检索问答服务。
package app

import (
	"PharmaChat/backend/go/internal/config"
	"PharmaChat/backend/go/internal/database/kafka"
	"PharmaChat/backend/go/internal/database/milvus"
	"PharmaChat/backend/go/internal/database/minio"
	"PharmaChat/backend/go/internal/database/mongo"
	"PharmaChat/backend/go/internal/database/mysql"
	"PharmaChat/backend/go/internal/database/postgres"
	"PharmaChat/backend/go/internal/database/redis"
	"PharmaChat/backend/go/internal/database/sqlite"
	"PharmaChat/backend/go/internal/embedding"
	"PharmaChat/backend/go/internal/llm"
	"PharmaChat/backend/go/internal/pharmacy_service/api"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/chat"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/cleaner"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/dal"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/loaders"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/pipeline"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/storages/chatmemory"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/storages/vectorstore"
	"PharmaChat/backend/go/internal/pharmacy_service/service"
	"PharmaChat/backend/go/pkg/circuitbreaker"
	phttp "PharmaChat/backend/go/pkg/http"
	"PharmaChat/backend/go/pkg/logger"
	"PharmaChat/backend/go/pkg/ratelimiter"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	fetchTimeout   = 30 * time.Second
	refreshLogSize = 200
)

// App 持有装配好的各个组件。
type App struct {
	Config    *config.AppConfig
	Index     *pipeline.RetrievalIndex
	Search    *service.PharmacyService
	Ingestion *service.IngestionService
	API       *api.API

	limiter ratelimiter.KeyedLimiter
	breaker circuitbreaker.CircuitBreaker
	log     *logger.Logger
	closers []func() error
	checks  map[string]api.HealthCheck
}

// New 根据配置创建所有依赖。出错时已打开的连接会被关闭。
func New(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (_ *App, err error) {
	a := &App{Config: cfg, log: log, checks: map[string]api.HealthCheck{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// 1. 模型
	model, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	if c, ok := model.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	embedder, err := embedding.NewEmdModel(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedding model: %w", err)
	}

	// 2. 存储
	store, err := a.vectorStore(ctx, embedder)
	if err != nil {
		return nil, err
	}
	memory, err := a.chatMemory(ctx)
	if err != nil {
		return nil, err
	}
	refreshLog, err := a.refreshLog()
	if err != nil {
		return nil, err
	}
	source, err := a.sourceFetcher(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.publisher()
	if err != nil {
		return nil, err
	}

	// 3. 模型调用链
	cb := cfg.Middleware.CircuitBreaker
	advisors := []chat.Advisor{chat.LoggingAdvisor(log)}
	if cb.Enabled {
		modelBreaker := circuitbreaker.New(cb.FailureThreshold, cb.SuccessThreshold, config.Duration(cb.Timeout, 30*time.Second),
			circuitbreaker.WithIsFailure(func(err error) bool {
				return err != nil && !errors.Is(err, context.Canceled)
			}),
			circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
				log.WithField("from", from.String()).WithField("to", to.String()).Warn("model circuit breaker state changed")
			}),
		)
		advisors = append(advisors, chat.CircuitBreakerAdvisor(modelBreaker))
		a.breaker = circuitbreaker.New(cb.FailureThreshold, cb.SuccessThreshold, config.Duration(cb.Timeout, 30*time.Second))
	}
	advisors = append(advisors,
		chat.TimeoutAdvisor(config.Duration(cfg.LLM.Timeout, 60*time.Second)),
		chat.HistoryAdvisor(memory, log),
	)
	client := chat.NewClient(model, advisors...)

	// 4. 检索与问答
	p := cfg.Pharmacy
	template, err := pipeline.LoadPromptTemplate(p.PromptTemplatePath)
	if err != nil {
		return nil, err
	}
	clean := cleaner.New(cleaner.Markers{
		Final:    p.Markers.Final,
		Thinking: p.Markers.Thinking,
		Answer:   p.Markers.Answer,
	})
	a.Index = pipeline.NewRetrievalIndex(embedder, store, pipeline.IndexOptions{
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		Threshold:   p.SimilarityThreshold,
	}, log.WithField("component", "index"))

	rewriter := pipeline.NewQueryRewriter(client, clean, p.HistoryDepth, log.WithField("component", "rewriter"))
	synthesizer := pipeline.NewAnswerSynthesizer(a.Index, client, memory, clean, pipeline.QAOptions{
		TopK:         p.TopK,
		HistoryDepth: p.HistoryDepth,
		Template:     template,
		Messages:     pipeline.Messages{NoData: p.Messages.NoData, ServerError: p.Messages.ServerError},
	}, log.WithField("component", "synthesizer"))
	ingestion := pipeline.NewIngestionPipeline(source, a.Index, p.PruneStale, log.WithField("component", "ingestion"))

	// 5. 服务
	a.Search = service.NewPharmacyService(rewriter, synthesizer, publisher, config.Duration(p.SearchTimeout, 10*time.Second), log)
	a.Ingestion = service.NewIngestionService(ingestion, refreshLog, p.SheetURL, log)
	a.API = api.NewAPI(a.Search, a.Ingestion, a.Index, log)
	for name, check := range a.checks {
		a.API.AddHealthCheck(name, check)
	}

	rl := cfg.Middleware.RateLimit
	if rl.Enabled {
		limiter, err := ratelimiter.NewPerKeyTokenBucket(rl.Rate, rl.Burst, rl.Clients)
		if err != nil {
			return nil, fmt.Errorf("create rate limiter: %w", err)
		}
		a.limiter = limiter
	}
	return a, nil
}

// Router 返回挂好中间件与路由的 gin 引擎。
func (a *App) Router() *gin.Engine {
	return api.NewRouter(a.API, a.log, api.RouterOptions{Limiter: a.limiter, Breaker: a.breaker})
}

// Close 按打开顺序的逆序释放资源。
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// probeDim 用一次真实的 embedding 调用确定向量维度。
func probeDim(ctx context.Context, embedder embedding.Embedding) (int, error) {
	vec, err := embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(vec) == 0 {
		return 0, errors.New("probe embedding dimension: empty vector")
	}
	return len(vec), nil
}

func (a *App) vectorStore(ctx context.Context, embedder embedding.Embedding) (interfaces.VectorStore, error) {
	db := &a.Config.Databases
	switch a.Config.Storage.VectorStore {
	case "milvus":
		client, err := milvus.GetClient(ctx, &db.Milvus)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.checks["milvus"] = client.HealthCheck
		dim := db.Milvus.Dim
		if dim <= 0 {
			if dim, err = probeDim(ctx, embedder); err != nil {
				return nil, err
			}
		}
		if err := client.EnsureCollection(ctx, dim); err != nil {
			return nil, err
		}
		return vectorstore.NewMilvusStore(client, a.log.WithField("store", "milvus"))
	case "pgvector":
		pool, err := postgres.GetPool(ctx, &db.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { postgres.Close(); return nil })
		a.checks["postgres"] = pool.Ping
		dim := db.Postgres.Dim
		if dim <= 0 {
			if dim, err = probeDim(ctx, embedder); err != nil {
				return nil, err
			}
		}
		return vectorstore.NewPgVectorStore(ctx, pool, db.Postgres.Table, dim, a.log.WithField("store", "pgvector"))
	default:
		return vectorstore.NewMemoryStore(), nil
	}
}

func (a *App) chatMemory(ctx context.Context) (interfaces.ChatMemory, error) {
	db := &a.Config.Databases
	switch a.Config.Storage.ChatMemory {
	case "redis":
		client, err := redis.GetClient(ctx, &db.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redis.Close)
		a.checks["redis"] = redis.HealthCheck
		return chatmemory.NewRedisStore(client, db.Redis.KeyPrefix, config.Duration(db.Redis.TurnTTL, 0)), nil
	case "mongo":
		client, err := mongo.GetClient(ctx, &db.MongoDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return mongo.Close(closeCtx)
		})
		a.checks["mongodb"] = mongo.HealthCheck
		return chatmemory.NewMongoStore(ctx, client.Database(db.MongoDB.Database))
	case "sqlite":
		sqlDB, err := sqlite.Open(db.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqlDB.Close)
		a.checks["sqlite"] = sqlDB.PingContext
		return chatmemory.NewSQLiteStore(ctx, sqlDB)
	default:
		return chatmemory.NewMemoryStore(), nil
	}
}

func (a *App) refreshLog() (interfaces.RefreshLog, error) {
	if a.Config.Storage.RefreshLog != "mysql" {
		return dal.NewMemoryRefreshLog(refreshLogSize), nil
	}
	db, err := mysql.GetDB(&a.Config.Databases.MySQL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, mysql.Close)
	a.checks["mysql"] = mysql.HealthCheck
	return dal.NewRefreshDAL(db)
}

func (a *App) sourceFetcher(ctx context.Context) (*loaders.SourceFetcher, error) {
	httpClient, err := phttp.NewClient(a.Config.Middleware.CircuitBreaker, fetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	var objects minio.ObjectReader
	if mc := &a.Config.Databases.MinIO; mc.Endpoint != "" {
		client, err := minio.GetClient(ctx, mc)
		if err != nil {
			return nil, err
		}
		objects = client
		a.checks["minio"] = minio.HealthCheck
	}
	return loaders.NewSourceFetcher(httpClient, objects), nil
}

func (a *App) publisher() (interfaces.EventPublisher, error) {
	kc := &a.Config.Databases.Kafka
	if len(kc.Brokers) == 0 {
		return nil, nil
	}
	client, err := kafka.GetClient(kc)
	if err != nil {
		return nil, err
	}
	pub := kafka.NewQueryPublisher(client)
	a.closers = append(a.closers, client.Close, pub.Close)
	a.checks["kafka"] = client.HealthCheck
	return pub, nil
}
