package service

import (
	"fmt"
	"sync/atomic"
	"time"
)

// IDs derivados del reloj en milisegundos ("R1700000000000"). lastIDMillis
// garantiza monotonicidad: dos creaciones en el mismo milisegundo nunca
// colisionan.
var lastIDMillis atomic.Int64

func timeID(prefix string) string {
	for {
		now := time.Now().UnixMilli()
		last := lastIDMillis.Load()
		if now <= last {
			now = last + 1
		}
		if lastIDMillis.CompareAndSwap(last, now) {
			return fmt.Sprintf("%s%d", prefix, now)
		}
	}
}
