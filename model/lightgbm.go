package model

import (
	"context"
	"fmt"

	"github.com/dmitryikh/leaves"
)

// LightGBM 在进程内执行 LightGBM 文本格式模型（训练脚本 save_model 的产物）。
type LightGBM struct {
	ensemble *leaves.Ensemble
	path     string
}

// LoadLightGBM 读取模型文件。LambdaRank 输出原始分，不做 sigmoid 等变换。
func LoadLightGBM(path string) (*LightGBM, error) {
	ensemble, err := leaves.LGEnsembleFromFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("load lightgbm model %s: %w", path, err)
	}
	return &LightGBM{ensemble: ensemble, path: path}, nil
}

func (m *LightGBM) Name() string { return "lightgbm" }

// NFeatures 返回模型期望的特征数。
func (m *LightGBM) NFeatures() int { return m.ensemble.NFeatures() }

func (m *LightGBM) Predict(ctx context.Context, features [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return []float64{}, nil
	}
	ncols := m.ensemble.NFeatures()
	if err := checkRows(features, ncols); err != nil {
		return nil, err
	}

	dense := make([]float64, 0, len(features)*ncols)
	for _, row := range features {
		dense = append(dense, row...)
	}
	predictions := make([]float64, len(features))
	if err := m.ensemble.PredictDense(dense, len(features), ncols, predictions, 0, 1); err != nil {
		return nil, fmt.Errorf("lightgbm predict: %w", err)
	}
	return predictions, nil
}
