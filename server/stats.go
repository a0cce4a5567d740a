/******************************************************************************
 *
 *  Description :
 *
 *    Live stats reported through expvar: routed control messages,
 *    mirrored requests, history events, reconnects, queue depths.
 *    Updates happen on a separate goroutine to keep the protocol
 *    paths free of expvar locking.
 *
 *****************************************************************************/

package main

import (
	"expvar"
	"net/http"
	"runtime"
	"time"

	"github.com/chatmq/chatmq/server/logs"
)

type varUpdate struct {
	// Name of the variable to update.
	varname string
	// Integer value to publish.
	count int64
	// Treat the count as an increment as opposed to the final value.
	inc bool
}

// Initialize stats reporting through expvar and optionally expose it
// over HTTP on a debug listener.
func statsInit(a *App, listenOn, path string) {
	a.statsUpdate = make(chan *varUpdate, 1024)

	start := time.Now()
	expvar.Publish("Uptime", expvar.Func(func() interface{} {
		return time.Since(start).Seconds()
	}))
	expvar.Publish("NumGoroutines", expvar.Func(func() interface{} {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("ConfirmationQueueDepth", expvar.Func(func() interface{} {
		return a.confirmations.Len()
	}))

	go statsUpdater(a)

	if listenOn == "" || path == "" || path == "-" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle(path, expvar.Handler())
	go func() {
		if err := http.ListenAndServe(listenOn, mux); err != nil {
			logs.Warn.Println("stats: debug listener failed:", err)
		}
	}()

	logs.Info.Printf("stats: variables exposed at 'http://%s%s'", listenOn, path)
}

// Register integer variable. Don't check for initialization.
func statsRegisterInt(name string) {
	expvar.Publish(name, new(expvar.Int))
}

// Async publish an increment (decrement) to int variable.
func (a *App) statsInc(name string, val int) {
	if a.statsUpdate != nil {
		select {
		case a.statsUpdate <- &varUpdate{name, int64(val), true}:
		default:
		}
	}
}

// Stop publishing stats.
func (a *App) statsShutdown() {
	if a.statsUpdate != nil {
		a.statsUpdate <- nil
	}
}

// The go routine which actually publishes stats updates.
func statsUpdater(a *App) {
	for upd := range a.statsUpdate {
		if upd == nil {
			a.statsUpdate = nil
			// Don't care to close the channel.
			break
		}

		if ev := expvar.Get(upd.varname); ev != nil {
			// Intentional panic if the ev is not *expvar.Int.
			intvar := ev.(*expvar.Int)
			if upd.inc {
				intvar.Add(upd.count)
			} else {
				intvar.Set(upd.count)
			}
		} else {
			panic("stats: update to unknown variable " + upd.varname)
		}
	}

	logs.Info.Println("stats: shutdown")
}
