package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func BenchmarkReconnect_FirstAttempt(b *testing.B) {
	bo := Reconnect(time.Millisecond, 10*time.Millisecond, 5)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = bo.Do(ctx, func(int) error { return nil })
	}
}

func BenchmarkReconnect_NotRetryable(b *testing.B) {
	errAuth := errors.New("authentication failed")
	bo := Reconnect(time.Millisecond, 10*time.Millisecond, 5)
	bo.Retryable = func(err error) bool { return !errors.Is(err, errAuth) }
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = bo.Do(ctx, func(int) error { return errAuth })
	}
}

func BenchmarkAddJitter(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = addJitter(50 * time.Millisecond)
	}
}
