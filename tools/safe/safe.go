package safe

import (
	"github.com/1314wu/server-p2p-signal/logger"
)

// SafeGo starts a goroutine that recovers from panic, so fire-and-forget
// callbacks cannot crash the gateway process.
func SafeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[SafeGo] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
