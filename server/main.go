/******************************************************************************
 *
 *  Description :
 *
 *    Setup & initialization.
 *
 *****************************************************************************/

package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chatmq/chatmq/server/broker"
	"github.com/chatmq/chatmq/server/concurrency"
	"github.com/chatmq/chatmq/server/logs"
	"github.com/chatmq/chatmq/server/queue"
)

const VERSION = "0.1"

// Number of pool goroutines running the agent's mirror publishes.
const numMirrorWorkers = 4

// App is the explicitly constructed application context. Every spawned
// goroutine receives it by reference; there is deliberately no
// package-level mutable state.
type App struct {
	cfg  *configType
	user string

	// Shared connection for directory reads and protocol publishes. The
	// control agent and chat sessions hold their own connections.
	conn broker.Conn

	presence *presenceDir
	groups   *groupDir
	proto    *protocol

	// Conversation links accepted by peers, awaiting pickup by the shell.
	confirmations *queue.Messages
	// Pool running the agent's mirror/history publishes.
	pool *concurrency.GoRoutinePool

	statsUpdate chan *varUpdate

	// Liveness flag: closed exactly once on shutdown; long-lived loops
	// poll it and wind down cooperatively.
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// alive reports whether the application is still supposed to run.
func (a *App) alive() bool {
	select {
	case <-a.stop:
		return false
	default:
		return true
	}
}

// shutdown clears the liveness flag. Safe to call more than once.
func (a *App) shutdown() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func main() {
	logs.Init()
	logs.Info.Printf("ChatMQ %s pid=%d starting", VERSION, os.Getpid())

	var configfile = flag.String("config", "./chatmq.conf", "Path to config file.")
	var brokerAddr = flag.String("broker", "", "Override config broker address.")
	var username = flag.String("user", "", "Username to sign in as.")
	var debugListen = flag.String("debug_listen", "", "Override config debug listener address.")
	flag.Parse()

	config, err := loadConfig(*configfile)
	if err != nil {
		if os.IsNotExist(err) {
			logs.Warn.Printf("config '%s' not found, using defaults", *configfile)
			def := defaultConfig()
			config = &def
		} else {
			logs.Err.Fatal(err)
		}
	}
	if *brokerAddr != "" {
		config.BrokerAddr = *brokerAddr
	}
	if *debugListen != "" {
		config.DebugListen = *debugListen
	}

	user := *username
	if user == "" {
		fmt.Print("Username: ")
		fmt.Scanln(&user)
	}
	if err := validName(user); err != nil {
		logs.Err.Fatal("invalid username: ", err)
	}

	app := &App{
		cfg:           config,
		user:          user,
		confirmations: queue.NewMessages(),
		pool:          concurrency.NewGoRoutinePool(numMirrorWorkers),
		stop:          make(chan struct{}),
	}

	app.conn, err = broker.Dial(broker.Config{
		Address:      config.BrokerAddr,
		ClientID:     broker.ClientID(user),
		CleanSession: true,
		OnConnectionLost: func(cause error) {
			logs.Warn.Println("main: connection lost, reconnecting:", cause)
		},
	})
	if err != nil {
		logs.Err.Fatal("cannot reach broker: ", err)
	}

	wait := config.snapshotWait()
	app.presence = &presenceDir{conn: app.conn, wait: wait}
	app.groups = &groupDir{conn: app.conn, wait: wait}
	app.proto = &protocol{
		conn:   app.conn,
		user:   user,
		groups: app.groups,
		wait:   wait,
		now:    time.Now,
	}

	statsRegisterInt("CtrlMessagesRouted")
	statsRegisterInt("RequestsMirrored")
	statsRegisterInt("HistoryEvents")
	statsRegisterInt("MalformedDropped")
	statsRegisterInt("AgentReconnects")
	statsInit(app, config.DebugListen, config.ExpvarPath)

	stopSignal := signalHandler()
	go func() {
		<-stopSignal
		app.shutdown()
	}()

	ag, err := newAgent(app)
	if err != nil {
		logs.Err.Fatal(err)
	}

	app.wg.Add(2)
	go ag.run()
	go presenceHeartbeat(app)

	runShell(app, os.Stdin, os.Stdout)

	app.shutdown()
	app.wg.Wait()

	// Loops are down; announce departure and release the transport.
	if err := app.presence.SetStatus(user, StatusOffline); err != nil {
		logs.Warn.Println("main: offline publish failed:", err)
	}
	app.pool.Stop()
	app.statsShutdown()
	app.conn.Close()
	logs.Info.Println("ChatMQ stopped")
}
