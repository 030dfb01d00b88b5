package model

import (
	"strings"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Mode はモデリングの種類（回帰または分類）です。
type Mode string

const (
	Regression     Mode = "regression"
	Classification Mode = "classification"
)

// ParseMode は "regression" / "classification" を解釈します。
// 空文字列は自動推定を意味し、"" を返します。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "regression", "reg":
		return Regression, nil
	case "classification", "class", "clf":
		return Classification, nil
	default:
		return "", errors.NewValidationError("mode", "must be regression or classification", s)
	}
}

func (m Mode) String() string {
	return string(m)
}
