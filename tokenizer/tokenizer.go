package tokenizer

// Tokenizer 是统一的 token 计数与编解码接口。
//
// 窗口抽取依赖 Encode/Decode 在 token 边界上切片；
// 缓冲释放只依赖 CountTokens。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数。
	CountTokens(text string) (int, error)

	// Encode 将文本转换为 token ID 列表。
	Encode(text string) ([]int, error)

	// Decode 将 token ID 转换回文本。
	Decode(tokens []int) (string, error)

	// Name 返回分词器的名称。
	Name() string
}

// Default 返回 cl100k_base 的 tiktoken 分词器；
// 编码数据不可用时调用方应回退到 NewEstimator()。
func Default() Tokenizer {
	return NewTiktoken(DefaultEncoding)
}

// TailTokens 返回文本末尾 n 个 token 对应的子串。
// 分词器无法编码时退化为 ~4 字符/token 的估算截取。
func TailTokens(t Tokenizer, text string, n int) string {
	if n <= 0 {
		return ""
	}
	tokens, err := t.Encode(text)
	if err == nil {
		if len(tokens) <= n {
			return text
		}
		if tail, err := t.Decode(tokens[len(tokens)-n:]); err == nil {
			return tail
		}
	}

	chars := n * estimateCharsPerToken
	if len(text) <= chars {
		return text
	}
	return text[len(text)-chars:]
}
