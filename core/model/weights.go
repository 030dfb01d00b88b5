package model

import (
	"encoding/json"
	"os"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// WeightsVersion は ModelWeights のフォーマットバージョンです。
const WeightsVersion = "1"

// ModelWeights は線形モデルの係数を表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はアルゴリズム名（linear_reg, logistic_reg）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数。多クラスの場合はクラスごとに Features の長さで連結される
	Coefficients []float64 `json:"coefficients"`

	// Intercepts は切片（回帰と2値分類では1つ、多クラスではクラス数）
	Intercepts []float64 `json:"intercepts"`

	// Features は設計行列の列名
	Features []string `json:"features,omitempty"`

	// Classes は分類の水準名（回帰では空）
	Classes []string `json:"classes,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters Params `json:"hyperparameters"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return mw.Validate()
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version != WeightsVersion {
		return errors.NewValidationError("version", "unsupported weights version", mw.Version)
	}
	if len(mw.Intercepts) == 0 {
		return errors.NewValidationError("intercepts", "fitted model must have at least one intercept", len(mw.Intercepts))
	}
	if len(mw.Features) > 0 && len(mw.Coefficients) != len(mw.Features)*len(mw.Intercepts) {
		return errors.NewValidationError("coefficients", "length must equal features x intercepts", len(mw.Coefficients))
	}
	return nil
}

// Coefficient は k 番目の切片に対応する j 番目の特徴量の係数を返します。
func (mw *ModelWeights) Coefficient(k, j int) float64 {
	return mw.Coefficients[k*len(mw.Features)+j]
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		Coefficients:    append([]float64(nil), mw.Coefficients...),
		Intercepts:      append([]float64(nil), mw.Intercepts...),
		Features:        append([]string(nil), mw.Features...),
		Classes:         append([]string(nil), mw.Classes...),
		Hyperparameters: mw.Hyperparameters.Copy(),
	}
	return clone
}

// SaveWeights は重みを JSON ファイルに保存します。
func SaveWeights(mw *ModelWeights, filename string) error {
	data, err := mw.ToJSON()
	if err != nil {
		return errors.Wrap(err, "encode model weights")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", filename)
	}
	return nil
}

// LoadWeights は JSON ファイルから重みを読み込みます。
func LoadWeights(filename string) (*ModelWeights, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", filename)
	}
	var mw ModelWeights
	if err := mw.FromJSON(data); err != nil {
		return nil, err
	}
	return &mw, nil
}
