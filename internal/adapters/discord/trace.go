package discord

import (
	"log"
	"time"
)

// step cronometra una etapa del despacho: `defer step("slash.bal")()`.
func step(label string) func() {
	start := time.Now()
	return func() { log.Printf("[trace] %s = %s", label, time.Since(start)) }
}
