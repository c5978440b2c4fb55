package utils

import "github.com/projecteru2/barge/log"

// SentryGo wraps goroutine spawn to capture panic
func SentryGo(f func()) {
	go func() {
		defer log.SentryDefer()
		f()
	}()
}
