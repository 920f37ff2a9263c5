// Package tokens estimates the model-token cost of memory text.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens in a string. Implementations must be deterministic
// and safe for concurrent use.
type Counter interface {
	Count(text string) int
}

// Heuristic approximates tokens as one per four bytes, rounded up.
type Heuristic struct{}

func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Tiktoken counts with a real BPE encoding.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktoken loads a BPE encoding by name. Loading may need network
// access the first time; callers should fall back to Heuristic on error.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// Default returns a tiktoken counter, or the heuristic when the encoding
// cannot be loaded.
func Default(encoding string) Counter {
	tok, err := NewTiktoken(encoding)
	if err != nil {
		return Heuristic{}
	}
	return tok
}
