// Package signaler exposes process termination signals so long-running
// commands can shut down cooperatively.
package signaler

import (
	"os"
	"os/signal"
	"syscall"
)

// WaitForInterrupt returns a channel that receives SIGTERM and interrupt
// notifications for this process
func WaitForInterrupt() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, os.Interrupt)
	return c
}
