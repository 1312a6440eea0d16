// Package tokenest estimates token counts for text sent to or received
// from an embedding or generation model, using tiktoken's cl100k_base
// encoding with a char/4 fallback if the encoder fails to load.
package tokenest

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	once sync.Once
	enc  *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	once.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	return enc
}

// Estimate returns the approximate token count of s.
func Estimate(s string) int {
	if s == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(s, nil, nil))
	}
	return (len(s) + 3) / 4
}

// EstimateAll sums Estimate over multiple strings.
func EstimateAll(strs ...string) int {
	total := 0
	for _, s := range strs {
		total += Estimate(s)
	}
	return total
}
