package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
)

// ErrMiss is returned by Cache.Get when there is no fresh entry.
var ErrMiss = errors.New("cache miss")

// Entry is one schema-valid model answer.
type Entry struct {
	Flow   string
	Engine string
	Model  string
	JSON   string
}

// Cache keeps model answers keyed by Key. Implementations expire entries on their own.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, e Entry) error
}

// Key is the SHA-256 over the flow, engine, model and every input, length-prefixed so that
// ("ab","c") and ("a","bc") differ.
func Key(flow, engine, model string, inputs ...[]byte) string {
	h := sha256.New()
	write := func(b []byte) {
		h.Write([]byte(strconv.Itoa(len(b))))
		h.Write([]byte{':'})
		h.Write(b)
	}
	write([]byte(flow))
	write([]byte(engine))
	write([]byte(model))
	for _, in := range inputs {
		write(in)
	}
	return hex.EncodeToString(h.Sum(nil))
}
