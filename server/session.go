/******************************************************************************
 *
 *  Description :
 *
 *    Conversation session: interactive send/receive loop over one chat
 *    topic. Inbound messages are collected by a reader goroutine into a
 *    local queue and printed on demand (';'), not live-rendered. A lone
 *    ':' ends the session; the reader is signaled and joined before the
 *    session returns.
 *
 *****************************************************************************/

package main

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chatmq/chatmq/server/broker"
	"github.com/chatmq/chatmq/server/logs"
	"github.com/chatmq/chatmq/server/queue"
)

const (
	cmdQuit  = ":"
	cmdFlush = ";"
)

type chatSession struct {
	user string
	link string
	conn broker.Conn
	// Inbound chat lines awaiting a flush command.
	inbox *queue.Messages
	wait  time.Duration
}

// openChat dials a dedicated connection for the chat and attaches to
// the topic.
func openChat(a *App, link string) (*chatSession, error) {
	conn, err := broker.Dial(broker.Config{
		Address:  a.cfg.BrokerAddr,
		ClientID: broker.ClientID(a.user + "-chat"),
		// Chat connections are throwaway; no session to resume.
		CleanSession: true,
		OnConnectionLost: func(cause error) {
			logs.Warn.Println("chat: connection lost, reconnecting:", cause)
		},
	})
	if err != nil {
		return nil, err
	}

	s, err := newChatSession(a.user, link, conn, a.cfg.snapshotWait())
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// newChatSession performs the one-shot rendezvous poll on the chat
// topic: if its retained state still holds the waiting sentinel, the
// peer has not joined yet and the caller may retry later. Group chat
// topics never carry the sentinel, so the poll passes straight through
// for them.
func newChatSession(user, link string, conn broker.Conn, wait time.Duration) (*chatSession, error) {
	retained, err := conn.Snapshot(chatTopic(link), wait)
	if err != nil {
		return nil, err
	}
	for _, m := range retained {
		if m.Payload == waitingSentinel {
			return nil, fmt.Errorf("chat '%s': %w", link, errPeerNotJoined)
		}
	}

	return &chatSession{
		user:  user,
		link:  link,
		conn:  conn,
		inbox: queue.NewMessages(),
		wait:  wait,
	}, nil
}

// run subscribes, drives the interactive loop until the quit command or
// input EOF, then tears everything down. The scanner is shared with the
// shell so no buffered input is lost on the way in or out of the chat.
func (s *chatSession) run(in *bufio.Scanner, out io.Writer) error {
	stop, wg, err := s.listen()
	if err != nil {
		s.conn.Close()
		return err
	}

	fmt.Fprintf(out, "--- chat %s --- ('%s' shows received messages, '%s' leaves)\n", s.link, cmdFlush, cmdQuit)
	err = s.interact(in, out)

	uerr := s.conn.Unsubscribe(chatTopic(s.link))
	close(stop)
	wg.Wait()
	s.conn.Close()
	if err == nil {
		err = uerr
	}
	return err
}

// listen opens the chat subscription and starts the reader goroutine
// moving arrived messages into the inbox.
func (s *chatSession) listen() (chan struct{}, *sync.WaitGroup, error) {
	arrived := make(chan string, 64)
	err := s.conn.Subscribe(chatTopic(s.link), func(m broker.Message) {
		if m.Payload == "" || m.Retained {
			return
		}
		select {
		case arrived <- m.Payload:
		default:
			logs.Warn.Println("chat: inbox overflow, dropping a message")
		}
	})
	if err != nil {
		return nil, nil, err
	}

	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case m := <-arrived:
				s.inbox.Insert(m)
			case <-stop:
				return
			}
		}
	}()
	return stop, wg, nil
}

// interact reads outgoing lines and executes the flush/quit commands.
func (s *chatSession) interact(in *bufio.Scanner, out io.Writer) error {
	topic := chatTopic(s.link)
	for in.Scan() {
		switch line := in.Text(); line {
		case cmdQuit:
			return nil
		case cmdFlush:
			for _, m := range s.inbox.DrainAll() {
				fmt.Fprintln(out, m)
			}
		case "":
			// Nothing to send.
		default:
			if err := s.conn.Publish(topic, s.user+": "+line, false); err != nil {
				logs.Err.Println("chat: send failed:", err)
			}
		}
	}
	return in.Err()
}
