package budget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenCounter is a precision Counter backed by github.com/pkoukk/
// tiktoken-go's BPE encoder, used in place of CharsPerToken when a budget
// decision needs exact counts rather than the fast heuristic (e.g. judging
// whether a single oversized message alone blows the hard cap).
type TiktokenCounter struct {
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding for modelName, falling back to
// cl100k_base (the encoding shared by the GPT-3.5/4 family) if modelName is
// unrecognized.
func NewTiktokenCounter(modelName string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenCounter{encoder: enc}, nil
}

// Count implements Counter.
func (c *TiktokenCounter) Count(s string) int {
	if s == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(s, nil, nil))
}
