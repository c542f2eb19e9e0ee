//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals registers the shutdown signals. Windows only delivers
// os.Interrupt.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
