package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/shoprank/classify"
	"github.com/rushteam/shoprank/config"
	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/embed"
	"github.com/rushteam/shoprank/metrics"
	"github.com/rushteam/shoprank/model"
	"github.com/rushteam/shoprank/rank"
	"github.com/rushteam/shoprank/rerank"
	"github.com/rushteam/shoprank/rules"
	"github.com/rushteam/shoprank/store"
	"github.com/rushteam/shoprank/telemetry"
	"github.com/rushteam/shoprank/vector"
)

// Deps 启动期装配出的共享资源，Close 释放全部连接并等待埋点落盘。
type Deps struct {
	Rules    *rules.Snapshot
	Redis    *store.RedisStore // 未配置时为 nil
	Metrics  *metrics.Metrics
	Reranker rerank.Reranker

	closers []func() error
}

func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadRules 规则来源优先级：MERCHANT_RULES_PATH 文件 > Redis（MERCHANT_IDS）> 内置规则。
func LoadRules(ctx context.Context, cfg *config.Config, redis core.Store, logger *slog.Logger) (*rules.Snapshot, error) {
	switch {
	case cfg.MerchantRulesPath != "":
		return rules.LoadFile(cfg.MerchantRulesPath)
	case redis != nil && len(cfg.MerchantIDs) > 0:
		return rules.LoadFromStore(ctx, redis, cfg.MerchantIDs)
	default:
		logger.Info("no merchant rules source configured, using builtin rules")
		return rules.Builtin(), nil
	}
}

// Build 按配置装配 Service。reg 为 nil 时不注册指标。
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Service, *Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}
	deps := &Deps{Metrics: metrics.New()}
	fail := func(err error) (*Service, *Deps, error) {
		_ = deps.Close()
		return nil, nil, err
	}
	if reg != nil {
		if err := deps.Metrics.Register(reg); err != nil {
			return fail(fmt.Errorf("register metrics: %w", err))
		}
	}

	if cfg.RedisAddr != "" {
		rs, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return fail(fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err))
		}
		deps.Redis = rs
		deps.closers = append(deps.closers, rs.Close)
	}

	var redisStore core.Store
	if deps.Redis != nil {
		redisStore = deps.Redis
	}
	snap, err := LoadRules(ctx, cfg, redisStore, logger)
	if err != nil {
		return fail(fmt.Errorf("load merchant rules: %w", err))
	}
	deps.Rules = snap

	retrievers, err := buildRetrievers(cfg, deps)
	if err != nil {
		return fail(err)
	}

	embedder, err := embed.NewCached(embed.NewHTTPEmbedder(embed.Config{
		BaseURL: cfg.EmbeddingBaseURL,
		APIKey:  cfg.EmbeddingAPIKey,
		Model:   cfg.EmbeddingModel,
	}), cfg.EmbeddingCacheSize)
	if err != nil {
		return fail(err)
	}

	var classifier Classifier
	if c, err := buildClassifier(ctx, cfg, embedder); err != nil {
		logger.Warn("category classifier disabled", "error", err)
	} else {
		classifier = c
	}

	engine, reranker := NewRanking(cfg, snap, logger, deps.Metrics)
	deps.Reranker = reranker

	var sink telemetry.Sink = telemetry.NopSink{}
	if deps.Redis != nil {
		sink = telemetry.NewStoreSink(deps.Redis, cfg.TelemetryListKey)
	}
	rec := telemetry.NewRecorder(sink, cfg.TelemetryBuffer,
		telemetry.WithLogger(logger), telemetry.WithMetrics(deps.Metrics))
	deps.closers = append(deps.closers, rec.Close)

	return &Service{
		Embedder:   embedder,
		Retrievers: retrievers,
		Classifier: classifier,
		Ranker:     engine,
		Reranker:   deps.Reranker,
		Telemetry:  rec,
		Metrics:    deps.Metrics,
		Logger:     logger,
	}, deps, nil
}

// NewRanking 按 LTR_MODE 装配融合引擎与重排器：
//   - rerank（默认）：启发式信号分融合，模型可用时融合后重排；
//   - signal：模型分作为融合信号分，重排器为 Passthrough。
//
// 模型缺失或加载失败时两种模式都退化为纯启发式。
func NewRanking(cfg *config.Config, snap *rules.Snapshot, logger *slog.Logger, m *metrics.Metrics) (*rank.Engine, rerank.Reranker) {
	rcfg := rerank.Config{
		ModelPath: cfg.LTRModelPath,
		Kind:      model.Kind(cfg.LTRModelKind),
		Timeout:   cfg.LTRModelTimeout,
	}
	engine := rank.NewEngine(snap, logger)
	engine.Metrics = m
	if !strings.EqualFold(cfg.LTRMode, config.LTRModeSignal) {
		return engine, rerank.NewReranker(rcfg, logger, m)
	}
	if lm := rerank.LoadModel(rcfg, logger); lm != nil {
		logger.Info("learned model used as rank signal", "model", lm.Name())
		engine.Scorer = &rank.ModelScorer{Model: lm, Metrics: m, Logger: logger}
	}
	return engine, rerank.Passthrough{}
}

func buildRetrievers(cfg *config.Config, deps *Deps) (core.RetrieverProvider, error) {
	switch {
	case cfg.QdrantAddr != "":
		q, err := vector.NewQdrant(cfg.QdrantAddr, cfg.QdrantCollectionPrefix)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, q.Close)
		return q, nil
	case cfg.CatalogPath != "":
		m, err := vector.LoadMemory(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		return core.SharedRetriever{VectorRetriever: m}, nil
	default:
		return nil, fmt.Errorf("no vector index configured: set QDRANT_ADDR or CATALOG_PATH")
	}
}

func buildClassifier(ctx context.Context, cfg *config.Config, embedder core.Embedder) (*classify.Classifier, error) {
	if cfg.CategoryEmbeddingsPath != "" {
		emb, err := classify.LoadEmbeddings(cfg.CategoryEmbeddingsPath)
		if err != nil {
			return nil, err
		}
		return classify.New(classify.DefaultCategories, emb, embedder)
	}
	return classify.NewFromEmbedder(ctx, embedder, classify.DefaultCategories, 4)
}
