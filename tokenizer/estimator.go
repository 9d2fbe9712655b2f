package tokenizer

import "github.com/moxer-mmh/blocking-responses-poc/types"

// estimateCharsPerToken 是英文文本的近似字符/token 比例。
const estimateCharsPerToken = 4

// Estimator is a character-count-based token estimator used when no real
// tokenizer is available. It approximates ~4 characters per token.
type Estimator struct{}

// NewEstimator creates the fallback estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	estimated := len(text) / estimateCharsPerToken
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *Estimator) Encode(text string) ([]int, error) {
	// The estimator cannot truly encode; return pseudo token IDs.
	count, err := e.CountTokens(text)
	if err != nil {
		return nil, err
	}
	tokens := make([]int, count)
	for i := range tokens {
		tokens[i] = i
	}
	return tokens, nil
}

func (e *Estimator) Decode(_ []int) (string, error) {
	return "", types.NewError(types.ErrTokenizerError, "estimator tokenizer does not support decode")
}

func (e *Estimator) Name() string {
	return "estimator"
}
