package linear

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createBenchmarkData はベンチマーク用のデータを生成する
func createBenchmarkData(rows, cols int) (*mat.Dense, []float64) {
	// シードを固定して再現性を確保
	rng := rand.New(rand.NewPCG(42, 42))

	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.Float64()*2.0-1.0)
		}
	}

	trueWeights := make([]float64, cols)
	for j := range trueWeights {
		trueWeights[j] = float64(j+1) * 0.5
	}

	// y = X * weights + 1 + 小さなノイズ
	y := make([]float64, rows)
	for i := range y {
		sum := 1.0
		for j := 0; j < cols; j++ {
			sum += X.At(i, j) * trueWeights[j]
		}
		y[i] = sum + (rng.Float64()-0.5)*0.1
	}
	return X, y
}

// BenchmarkRegressionFit はFitメソッドのベンチマークを実行する
func BenchmarkRegressionFit(b *testing.B) {
	sizes := []struct {
		name string
		rows int
		cols int
	}{
		{"Small_100x10", 100, 10},
		{"Medium_1000x10", 1000, 10}, // 並列処理の閾値
		{"Large_10000x20", 10000, 20},
		{"XLarge_50000x50", 50000, 50},
	}

	for _, size := range sizes {
		b.Run(size.name, func(b *testing.B) {
			X, y := createBenchmarkData(size.rows, size.cols)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := NewRegression(WithPenalty(0.01)).Fit(X, y); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkLogisticRegressionFit は二値分類の LBFGS 学習を測定する
func BenchmarkLogisticRegressionFit(b *testing.B) {
	X, score := createBenchmarkData(2000, 10)
	y := make([]float64, len(score))
	for i, s := range score {
		if s > 1 {
			y[i] = 1
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := NewLogisticRegression(2).Fit(X, y); err != nil {
			b.Fatal(err)
		}
	}
}
