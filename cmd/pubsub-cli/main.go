// Command pubsub-cli is an interactive line-oriented client for the broker:
// each line is a command (login, create, post, subscribe, ...), translated
// into an RPC request and printed back as JSON.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/spf13/pflag"
)

func main() {
	address := pflag.String("address", "127.0.0.1:8080", "broker address (host:port)")
	debug := pflag.Bool("debug", false, "dump the full decoded reply struct instead of just its result field")
	pflag.Parse()

	conn, err := dial(*address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pubsub-cli: dial: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	client := &client{conn: conn, debug: *debug}
	go client.readLoop()

	fmt.Println("connected to", *address)
	fmt.Println("commands: login <user> | create <topic> | get_all | post <topic_id_hex> <content> | get_sync <topic_id_hex> | subscribe <topic_id_hex> | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			return
		}
		if err := client.handleCommand(line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func dial(address string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws://"+address+"/ws")
	return conn, err
}

type client struct {
	conn   net.Conn
	nextID int
	debug  bool
}

type request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type reply struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *errorPayload   `json:"error,omitempty"`
}

type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

func (c *client) readLoop() {
	for {
		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			return
		}
		var r reply
		if err := json.Unmarshal(data, &r); err != nil {
			fmt.Println("<< malformed reply:", string(data))
			continue
		}
		if c.debug {
			spew.Dump(r)
			continue
		}
		if r.Error != nil {
			fmt.Printf("<< error id=%s kind=%s msg=%s\n", r.ID, r.Error.Kind, r.Error.Message)
			continue
		}
		fmt.Printf("<< id=%s result=%s\n", r.ID, string(r.Result))
	}
}

func (c *client) send(method string, params any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return err
	}
	c.nextID++
	req := request{ID: strconv.Itoa(c.nextID), Method: method, Params: body}
	frame, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return wsutil.WriteClientText(c.conn, frame)
}

func (c *client) handleCommand(line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "login":
		if len(args) < 1 {
			return fmt.Errorf("usage: login <username>")
		}
		return c.send("auth.login", map[string]string{"username": args[0]})
	case "create":
		if len(args) < 1 {
			return fmt.Errorf("usage: create <topic-name>")
		}
		return c.send("topic.create", map[string]any{
			"name":      args[0],
			"retention": map[string]any{"bounded": false},
		})
	case "get_all":
		return c.send("topic.get_all", map[string]any{})
	case "post":
		if len(args) < 2 {
			return fmt.Errorf("usage: post <topic_id> <content...>")
		}
		id, err := parseWireID(args[0])
		if err != nil {
			return err
		}
		return c.send("message.post", map[string]any{
			"topic_id": id,
			"content":  strings.Join(args[1:], " "),
		})
	case "get_sync":
		if len(args) < 1 {
			return fmt.Errorf("usage: get_sync <topic_id>")
		}
		id, err := parseWireID(args[0])
		if err != nil {
			return err
		}
		return c.send("message.get_messages_sync", map[string]any{"topic_id": id})
	case "subscribe":
		if len(args) < 1 {
			return fmt.Errorf("usage: subscribe <topic_id>")
		}
		id, err := parseWireID(args[0])
		if err != nil {
			return err
		}
		return c.send("message.subscribe", map[string]any{"topic_id": id})
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// parseWireID accepts "<hi>:<lo>" (two hex 64-bit halves). Replies carry
// ids as a JSON object with decimal "hi" and "lo" numbers, so each half
// must be converted to hex before it is typed here.
func parseWireID(s string) (map[string]uint64, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("id must be formatted as hi:lo hex halves")
	}
	hi, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("bad hi half: %w", err)
	}
	lo, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("bad lo half: %w", err)
	}
	return map[string]uint64{"hi": hi, "lo": lo}, nil
}
