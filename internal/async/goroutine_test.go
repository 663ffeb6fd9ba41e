package async

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type logFunc func(format string, args ...any)

func (f logFunc) Error(format string, args ...any) { f(format, args...) }

func TestGoRunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "job", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background function never ran")
	}
}

func TestGoContainsPanic(t *testing.T) {
	logged := make(chan string, 1)
	logger := logFunc(func(format string, args ...any) {
		logged <- fmt.Sprintf(format, args...)
	})

	Go(logger, "exploding", func() { panic("boom") })

	select {
	case msg := <-logged:
		if !strings.Contains(msg, "boom") || !strings.Contains(msg, "exploding") {
			t.Fatalf("panic report missing details: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("panic was not reported")
	}
}

func TestGoNilLoggerSwallowsPanic(t *testing.T) {
	done := make(chan struct{})
	Go(nil, "quiet", func() {
		defer close(done)
		panic("unreported")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking function never ran")
	}
}
