// Package rerank 在融合排序之后，可选地用离线训练的学习排序模型重排。
//
// 进程启动时由 NewReranker 一次性决定使用哪种实现：
//   - Learned：模型加载成功，每次请求打分并按模型分重排；
//   - Passthrough：模型缺失或加载失败，原样返回。
//
// 两种状态在进程生命周期内不再切换，也不会重试加载。
package rerank

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/rushteam/shoprank/core"
	"github.com/rushteam/shoprank/metrics"
	"github.com/rushteam/shoprank/model"
)

// Reranker 对已融合排序的结果做二次排序。实现必须不修改入参切片。
type Reranker interface {
	Name() string
	Rerank(ctx context.Context, results []core.RankedResult, q core.QueryContext) []core.RankedResult
}

// Config 模型配置。
type Config struct {
	ModelPath string
	Kind      model.Kind
	Timeout   time.Duration // 仅 rpc 模型使用
}

// NewReranker 加载模型并返回对应实现。加载失败只记录一次日志，不返回错误。
func NewReranker(cfg Config, logger *slog.Logger, m *metrics.Metrics) Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	lm := LoadModel(cfg, logger)
	if lm == nil {
		return Passthrough{}
	}
	logger.Info("learned reranker enabled", "path", cfg.ModelPath, "model", lm.Name())
	return &Learned{Model: lm, Logger: logger, Metrics: m}
}

// LoadModel 按配置加载模型，模型缺失或加载失败时返回 nil。
// 文件不存在属于正常部署形态（只记 Info），文件损坏记 Error。
func LoadModel(cfg Config, logger *slog.Logger) model.LearnedModel {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Kind != model.KindRPC {
		if cfg.ModelPath == "" {
			logger.Info("learned model disabled: no model path configured")
			return nil
		}
		if _, err := os.Stat(cfg.ModelPath); errors.Is(err, fs.ErrNotExist) {
			logger.Info("learned model disabled: model file not found", "path", cfg.ModelPath)
			return nil
		}
	}

	lm, err := model.Load(cfg.Kind, cfg.ModelPath, cfg.Timeout)
	if err != nil {
		logger.Error("learned model disabled: failed to load model",
			"path", cfg.ModelPath, "kind", string(cfg.Kind), "error", err)
		return nil
	}
	return lm
}

// Passthrough 是模型不可用时的恒等实现。
type Passthrough struct{}

func (Passthrough) Name() string { return "passthrough" }

func (Passthrough) Rerank(_ context.Context, results []core.RankedResult, _ core.QueryContext) []core.RankedResult {
	return results
}
