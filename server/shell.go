/******************************************************************************
 *
 *  Description :
 *
 *    Thin interactive menu over the protocol layer. Every option maps
 *    1:1 to a directory or protocol operation; no protocol logic lives
 *    here. Resolvable failures print a status line and fall back to the
 *    menu.
 *
 *****************************************************************************/

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chatmq/chatmq/server/logs"
)

const shellMenu = `
1. List users
2. List groups
3. Create group
4. Request 1:1 chat
5. Request to join a group
6. Pending requests
7. History
8. Enter chat
0. Quit
`

type shell struct {
	app *App
	in  *bufio.Scanner
	out io.Writer
}

func runShell(a *App, in io.Reader, out io.Writer) {
	sh := &shell{app: a, in: bufio.NewScanner(in), out: out}
	fmt.Fprintf(out, "ChatMQ. Signed in as '%s'.\n", a.user)

	for a.alive() {
		choice := sh.readLine(shellMenu + "> ")

		var err error
		switch choice {
		case "1":
			err = sh.listUsers()
		case "2":
			err = sh.listGroups()
		case "3":
			err = sh.createGroup()
		case "4":
			err = sh.requestUser()
		case "5":
			err = sh.requestGroup()
		case "6":
			err = sh.respondRequests()
		case "7":
			err = sh.showHistory()
		case "8":
			err = sh.enterChat()
		case "0", "":
			return
		default:
			fmt.Fprintln(out, "Invalid option.")
		}

		if err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}

// readLine prompts and reads one trimmed input line. Returns "" on EOF.
func (sh *shell) readLine(prompt string) string {
	fmt.Fprint(sh.out, prompt)
	if !sh.in.Scan() {
		return ""
	}
	return strings.TrimSpace(sh.in.Text())
}

func (sh *shell) listUsers() error {
	entries, err := sh.app.presence.ListUsers()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(sh.out, "No users known yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(sh.out, "%s | %s\n", e.User, e.Status)
	}
	return nil
}

func (sh *shell) listGroups() error {
	groups, err := sh.app.groups.ListGroups()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintln(sh.out, "No groups yet.")
		return nil
	}
	for _, g := range groups {
		fmt.Fprintf(sh.out, "%s\n  Leader: %s\n  Members: %s\n", g.Name, g.Leader, strings.Join(g.Members, ", "))
	}
	return nil
}

func (sh *shell) createGroup() error {
	name := sh.readLine("Group name: ")
	link, err := sh.app.groups.CreateGroup(name, sh.app.user, sh.app.proto.now())
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Group '%s' created, chat '%s'.\n", name, link)
	return nil
}

func (sh *shell) requestUser() error {
	target := sh.readLine("Chat with: ")
	if err := sh.app.proto.RequestUser(target); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Request sent to '%s'.\n", target)
	return nil
}

func (sh *shell) requestGroup() error {
	group := sh.readLine("Join group: ")
	if err := sh.app.proto.RequestGroup(group); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Request sent to the leader of '%s'.\n", group)
	return nil
}

func (sh *shell) respondRequests() error {
	pending, err := sh.app.proto.PendingRequests()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(sh.out, "No pending requests.")
		return nil
	}

	for i, req := range pending {
		fmt.Fprintf(sh.out, "%d. %s\n", i+1, describeCtrl(req))
	}

	choice := sh.readLine("Respond to (number, empty to go back): ")
	if choice == "" {
		return nil
	}
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 1 || idx > len(pending) {
		fmt.Fprintln(sh.out, "Invalid option.")
		return nil
	}

	accept := strings.EqualFold(sh.readLine("Accept? (y/n): "), "y")

	var link string
	switch req := pending[idx-1].(type) {
	case UserRequest:
		link, err = sh.app.proto.RespondUser(req.From, accept)
	case GroupRequest:
		link, err = sh.app.proto.RespondGroup(req.Group, req.From, accept)
	}
	if err != nil {
		return err
	}
	if accept {
		fmt.Fprintf(sh.out, "Accepted, chat '%s'.\n", link)
	} else {
		fmt.Fprintln(sh.out, "Rejected.")
	}
	return nil
}

func (sh *shell) showHistory() error {
	events, err := sh.app.proto.History()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(sh.out, "No history yet.")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintln(sh.out, describeCtrl(ev))
	}
	return nil
}

func (sh *shell) enterChat() error {
	if fresh := sh.app.confirmations.DrainAll(); len(fresh) > 0 {
		fmt.Fprintln(sh.out, "Newly accepted chats:")
		for _, link := range fresh {
			fmt.Fprintf(sh.out, "  %s\n", link)
		}
	}

	link := sh.readLine("Chat link (empty to go back): ")
	if link == "" {
		return nil
	}

	session, err := openChat(sh.app, link)
	if errors.Is(err, errPeerNotJoined) {
		fmt.Fprintln(sh.out, "Peer has not joined yet; try again later.")
		return nil
	}
	if err != nil {
		return err
	}

	if err := session.run(sh.in, sh.out); err != nil {
		logs.Warn.Println("chat: session ended with error:", err)
	}
	return nil
}

// describeCtrl renders one control or history message for the operator.
func describeCtrl(msg CtrlMsg) string {
	switch m := msg.(type) {
	case UserRequest:
		return fmt.Sprintf("chat request from '%s'", m.From)
	case GroupRequest:
		return fmt.Sprintf("'%s' asks to join group '%s'", m.From, m.Group)
	case GroupCreated:
		return fmt.Sprintf("created group '%s' (chat '%s')", m.Group, m.Link)
	case UserRequestSent:
		return fmt.Sprintf("chat request sent to '%s'", m.Target)
	case GroupRequestSent:
		return fmt.Sprintf("asked '%s' to join group '%s'", m.Leader, m.Group)
	case UserRequestAccepted:
		return fmt.Sprintf("'%s' accepted your chat request (chat '%s')", m.Peer, m.Link)
	case GroupRequestAccepted:
		return fmt.Sprintf("'%s' admitted you to group '%s' (chat '%s')", m.Peer, m.Group, m.Link)
	case UserRequestRejected:
		return fmt.Sprintf("'%s' rejected your chat request", m.Peer)
	case GroupRequestRejected:
		return fmt.Sprintf("'%s' rejected your request to join '%s'", m.Peer, m.Group)
	case UserAccepted:
		return fmt.Sprintf("you accepted '%s' (chat '%s')", m.Responder, m.Link)
	case GroupAccepted:
		return fmt.Sprintf("you admitted '%s' to group '%s'", m.Responder, m.Group)
	case UserRejected:
		return fmt.Sprintf("you rejected '%s'", m.Responder)
	case GroupRejected:
		return fmt.Sprintf("you rejected '%s' for group '%s'", m.Responder, m.Group)
	}
	return msg.Encode()
}
