package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// LRModel 实现了逻辑回归 (Logistic Regression) 模型，作为 LightGBM 之外的轻量替代。
//
// 预测原理：
// 1. 线性加权求和: z = Bias + sum(Weight_i * Feature_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// Weights 与特征向量按位置对齐。
type LRModel struct {
	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
}

// LoadLRModel 从 JSON 加载：{"bias": -1.2, "weights": [2.0, -0.001, -0.01, 0.3, 0.2]}
func LoadLRModel(path string) (*LRModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m LRModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse lr model: %w", err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("lr model has no weights")
	}
	return &m, nil
}

func (m *LRModel) Name() string { return "lr" }

func (m *LRModel) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("lr model has no weights")
	}
	if err := checkRows(features, len(m.Weights)); err != nil {
		return nil, err
	}
	scores := make([]float64, len(features))
	for i, row := range features {
		z := m.Bias
		for j, v := range row {
			z += m.Weights[j] * v
		}
		scores[i] = 1 / (1 + math.Exp(-z))
	}
	return scores, nil
}
