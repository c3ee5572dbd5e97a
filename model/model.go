// Package model 提供离线训练产物（打分函数）的加载与推理。
//
// 模型在进程启动时加载一次，之后只读，Predict 可并发调用。
// 训练是离线任务（LightGBM LambdaRank），这里只消费其产物。
package model

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rushteam/shoprank/core"
)

// LearnedModel 对一批特征向量打分，返回与输入行一一对应的分数。
type LearnedModel interface {
	Name() string
	Predict(ctx context.Context, features [][]float64) ([]float64, error)
}

// Kind 模型类型。
type Kind string

const (
	KindLightGBM Kind = "lightgbm" // LightGBM 文本模型（ltr_model.txt）
	KindLR       Kind = "lr"       // 逻辑回归 JSON
	KindRPC      Kind = "rpc"      // 远程模型服务，path 为 endpoint
)

// Load 按类型加载模型，任何失败都包装为 core.ErrModelLoad。
func Load(kind Kind, path string, timeout time.Duration) (LearnedModel, error) {
	if path == "" {
		return nil, core.ErrModelLoad.Wrap(fmt.Errorf("model path is empty"))
	}

	var (
		m   LearnedModel
		err error
	)
	switch kind {
	case KindLightGBM, "":
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, core.ErrModelLoad.Wrap(statErr)
		}
		m, err = LoadLightGBM(path)
	case KindLR:
		m, err = LoadLRModel(path)
	case KindRPC:
		m = NewRPCModel(string(kind), path, timeout)
	default:
		err = fmt.Errorf("unknown model kind %q", kind)
	}
	if err != nil {
		return nil, core.ErrModelLoad.Wrap(err)
	}
	return m, nil
}

// PredictChecked 调用 m.Predict，并把 panic 与分数条数不符统一转换为错误。
// 模型实现（含第三方推理库）的 panic 不应越过请求边界。
func PredictChecked(ctx context.Context, m LearnedModel, features [][]float64) (scores []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			scores, err = nil, fmt.Errorf("model %s panicked: %v", m.Name(), r)
		}
	}()
	scores, err = m.Predict(ctx, features)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(features) {
		return nil, fmt.Errorf("model returned %d scores for %d rows", len(scores), len(features))
	}
	return scores, nil
}

// checkRows 校验特征矩阵是规整的（每行长度一致）。
func checkRows(features [][]float64, want int) error {
	for i, row := range features {
		if want > 0 && len(row) != want {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), want)
		}
	}
	return nil
}
