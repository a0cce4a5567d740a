/******************************************************************************
 *
 *  Description :
 *
 *    Graceful shutdown on OS signals.
 *
 *****************************************************************************/

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/chatmq/chatmq/server/logs"
)

func signalHandler() <-chan bool {
	stop := make(chan bool)

	signchan := make(chan os.Signal, 1)
	signal.Notify(signchan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		// Wait for a signal. Don't care which signal it is
		sig := <-signchan
		logs.Info.Printf("signal received: '%s', shutting down", sig)
		stop <- true
	}()

	return stop
}
