package summarizer

import (
	"context"
	"fmt"
)

// 摘要风格与篇幅标签，CLI 与配置共用。
const (
	StyleComprehensive = "comprehensive"
	StyleBulletPoints  = "bullet_points"
	StyleKeyPoints     = "key_points"
	StyleStructured    = "structured"

	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// Result 是摘要后端的统一输出。
type Result struct {
	Text       string
	WordCount  int
	Model      string
	TokensUsed int
}

// Backend 定义文本摘要后端契约。
type Backend interface {
	Name() string
	Summarize(ctx context.Context, text, style, length string) (*Result, error)
}

// TargetWords 返回篇幅标签对应的目标词数。
func TargetWords(length string) int {
	switch length {
	case LengthShort:
		return 150
	case LengthLong:
		return 500
	default:
		return 300
	}
}

// ValidateStyle 校验风格标签。
func ValidateStyle(style string) error {
	switch style {
	case StyleComprehensive, StyleBulletPoints, StyleKeyPoints, StyleStructured:
		return nil
	}
	return fmt.Errorf("未知摘要风格: %s", style)
}

// ValidateLength 校验篇幅标签。
func ValidateLength(length string) error {
	switch length {
	case LengthShort, LengthMedium, LengthLong:
		return nil
	}
	return fmt.Errorf("未知摘要篇幅: %s", length)
}
