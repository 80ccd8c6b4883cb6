package util

import "sync"

// FrameBufSize is the capacity of pooled frame buffers.  Larger
// requests get a one-off allocation that is never pooled.
const FrameBufSize = 32 * 1024

var framePool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, FrameBufSize)
		return &buf
	},
}

// FrameBuffer returns a scratch slice of length n and a release func.
// The slice must not be used after release is called.
func FrameBuffer(n int) (buf []byte, release func()) {
	if n > FrameBufSize {
		return make([]byte, n), func() {}
	}
	pooled := framePool.Get().(*[]byte)
	return (*pooled)[:n], func() { framePool.Put(pooled) }
}
