package manager

// ByteTokenizer maps text to one token per byte. It is the fallback when no
// vocabulary-backed tokenizer is installed via ManagerConfig.Tokenizers, and
// keeps the generation path exercisable with any model whose vocabulary
// covers the byte range.
type ByteTokenizer struct{}

func (ByteTokenizer) Encode(text string) ([]int32, error) {
	out := make([]int32, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = int32(text[i])
	}
	return out, nil
}

func (ByteTokenizer) Decode(tokens []int32) (string, error) {
	out := make([]byte, len(tokens))
	for i, t := range tokens {
		out[i] = byte(t)
	}
	return string(out), nil
}
