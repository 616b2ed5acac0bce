package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// estimateTokens counts tokens of texts with the model's tokenizer, or cl100k_base
// for models tiktoken does not know. It returns false when no tokenizer can be
// loaded (the BPE files are fetched on first use).
func estimateTokens(model string, texts ...string) (int, bool) {
	enc := encodingFor(model)
	if enc == nil {
		return 0, false
	}
	total := 0
	for _, t := range texts {
		total += len(enc.Encode(t, nil, nil))
	}
	return total, true
}

func encodingFor(model string) *tiktoken.Tiktoken {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	if enc, ok := encodings[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		enc = nil
	}
	// Failures are cached too, so an offline host does not retry on every request.
	encodings[model] = enc
	return enc
}
