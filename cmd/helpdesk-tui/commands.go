// ABOUTME: Input line parsing for helpdesk-tui
// ABOUTME: Maps slash commands and plain text onto gateway requests per role

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389/helpdesk-gateway/internal/protocol"
)

var (
	errQuit      = errors.New("quit")
	errHelp      = errors.New("help")
	errNoSession = errors.New("no session joined, use /join <id> first")
)

// parseCommand turns one input line into a request. current is the
// session the client is in, if any.
func parseCommand(line string, admin bool, current string) (protocol.Request, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		if admin {
			if current == "" {
				return nil, errNoSession
			}
			return protocol.SendMessageRequest{Body: line, SessionID: current}, nil
		}
		return protocol.SendMessageRequest{Body: line}, nil
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit", "/q":
		return nil, errQuit
	case "/help":
		return nil, errHelp
	case "/typing":
		on := len(args) == 0 || args[0] != "off"
		return protocol.TypingRequest{IsTyping: on}, nil
	}

	if !admin {
		return nil, fmt.Errorf("unknown command %s (try /help)", cmd)
	}

	switch cmd {
	case "/sessions":
		return protocol.GetSessionsRequest{}, nil
	case "/closed":
		return protocol.GetClosedSessionsRequest{}, nil
	case "/join":
		if len(args) != 1 {
			return nil, errors.New("usage: /join <session-id>")
		}
		return protocol.JoinSessionRequest{SessionID: args[0]}, nil
	case "/leave":
		return protocol.LeaveSessionRequest{}, nil
	case "/close":
		id := current
		if len(args) > 0 {
			id, args = args[0], args[1:]
		}
		if id == "" {
			return nil, errors.New("usage: /close <session-id> [reason]")
		}
		return protocol.CloseSessionRequest{SessionID: id, Reason: strings.Join(args, " ")}, nil
	case "/history":
		if len(args) != 1 {
			return nil, errors.New("usage: /history <session-id>")
		}
		return protocol.GetSessionHistoryRequest{SessionID: args[0]}, nil
	case "/view":
		if len(args) != 1 {
			return nil, errors.New("usage: /view <closed-session-id>")
		}
		return protocol.ViewClosedSessionRequest{SessionID: args[0]}, nil
	case "/client":
		if len(args) != 1 {
			return nil, errors.New("usage: /client <client-id>")
		}
		return protocol.GetClientHistoryRequest{ClientID: args[0]}, nil
	}
	return nil, fmt.Errorf("unknown command %s (try /help)", cmd)
}

// printHelp displays available commands.
func printHelp(admin bool) {
	fmt.Println("Commands:")
	if admin {
		fmt.Println("  /sessions            List active sessions")
		fmt.Println("  /closed              List closed sessions")
		fmt.Println("  /join <id>           Take a waiting session")
		fmt.Println("  /leave               Hand the current session back")
		fmt.Println("  /close [id] [why]    Close a session (default: current)")
		fmt.Println("  /history <id>        Show an active session's messages")
		fmt.Println("  /view <id>           Show a closed session")
		fmt.Println("  /client <client-id>  Show a client's past sessions")
	}
	fmt.Println("  /typing [off]        Send a typing indicator")
	fmt.Println("  /help                Show this help")
	fmt.Println("  /quit                Exit")
	fmt.Println("Anything else is sent as a message.")
}
