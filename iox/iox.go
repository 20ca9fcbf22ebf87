// Package iox holds small cleanup helpers for closers whose errors
// nobody can act on.
package iox

import "io"

// DiscardClose closes c and drops the error.
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(ln))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops the error, for deferred Sync or Flush.
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }
