// Command kkrpc-conformance runs the protocol's cross-process conformance
// scenarios over a real stdio boundary: it relaunches itself as a child
// process (the "server" role) and drives it as a Peer (the "client" role)
// over the child's stdin/stdout, exactly the self-spawn shape the teacher's
// main.go used to start its daemon, adapted from a long-lived background
// process to a short-lived paired subprocess.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/firi/kkrpc"
	"github.com/firi/kkrpc/internal/logger"
	"github.com/firi/kkrpc/transport"
)

// serverFlag is the hidden re-exec marker, the conformance binary's analogue
// of the teacher's daemon self-spawn switch.
const serverFlag = "--kkrpc-server"

func main() {
	if len(os.Args) > 1 && os.Args[1] == serverFlag {
		runServer()
		return
	}
	if err := runClient(); err != nil {
		fmt.Fprintln(os.Stderr, "kkrpc-conformance:", err)
		os.Exit(1)
	}
}

// runServer is the child process: it registers the conformance api and
// serves it over its own stdin/stdout until the parent closes the pipe.
func runServer() {
	api := kkrpc.NewApi()

	api.RegisterMethod("math.add", func(args []any) (any, error) {
		sum := 0.0
		for _, a := range args {
			n, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("math.add: argument %v is not a number", a)
			}
			sum += n
		}
		return sum, nil
	})

	api.RegisterMethod("echo", func(args []any) (any, error) {
		if len(args) == 0 {
			return nil, nil
		}
		return args[0], nil
	})

	api.RegisterMethod("withCallback", func(args []any) (any, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("withCallback: expected one callback argument")
		}
		cb, ok := args[0].(kkrpc.Callback)
		if !ok {
			return nil, fmt.Errorf("withCallback: argument is not a callback")
		}
		payload, _ := json.Marshal("callback:stdio")
		cb([]json.RawMessage{payload})
		return true, nil
	})

	api.SetValue("session.greeting", "hello from the server")

	t := transport.NewStdio(os.Stdin, os.Stdout)
	peer := kkrpc.NewPeer(t, api)

	// Block until the parent closes its side of the pipe; the reader loop
	// detects that on its own and closes Done.
	<-peer.Done()
}

// runClient spawns the server child, drives five conformance scenarios
// against it (math.add, echo, callback, get/set, unknown method), and
// reports the first failure. No concurrent-calls scenario is run.
func runClient() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	cmd := exec.Command(execPath, serverFlag)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open child stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open child stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start child process: %w", err)
	}
	defer cmd.Wait()

	sessionID := uuid.NewString()
	log := logger.NewFileLogger(nil, 256)
	log.Info("conformance session %s: server pid %d", sessionID, cmd.Process.Pid)

	t := transport.NewStdio(stdout, stdin)
	peer := kkrpc.NewPeer(t, kkrpc.NewApi(), kkrpc.WithLogger(log))
	defer peer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := scenarioMathAdd(ctx, peer); err != nil {
		return err
	}
	if err := scenarioEcho(ctx, peer); err != nil {
		return err
	}
	if err := scenarioCallback(ctx, peer); err != nil {
		return err
	}
	if err := scenarioGetSet(ctx, peer); err != nil {
		return err
	}
	if err := scenarioUnknownMethod(ctx, peer); err != nil {
		return err
	}

	fmt.Println("all conformance scenarios passed")
	return nil
}

func scenarioMathAdd(ctx context.Context, peer *kkrpc.Peer) error {
	result, err := peer.Call(ctx, "math.add", []any{float64(4), float64(5)})
	if err != nil {
		return fmt.Errorf("math.add: %w", err)
	}
	var sum float64
	if err := json.Unmarshal(result, &sum); err != nil {
		return fmt.Errorf("math.add: decode result: %w", err)
	}
	if sum != 9 {
		return fmt.Errorf("math.add: expected 9, got %v", sum)
	}
	return nil
}

func scenarioEcho(ctx context.Context, peer *kkrpc.Peer) error {
	result, err := peer.Call(ctx, "echo", []any{"round trip"})
	if err != nil {
		return fmt.Errorf("echo: %w", err)
	}
	var got string
	if err := json.Unmarshal(result, &got); err != nil {
		return fmt.Errorf("echo: decode result: %w", err)
	}
	if got != "round trip" {
		return fmt.Errorf("echo: expected %q, got %q", "round trip", got)
	}
	return nil
}

func scenarioCallback(ctx context.Context, peer *kkrpc.Peer) error {
	received := make(chan string, 1)
	cb := kkrpc.Callback(func(args []json.RawMessage) {
		var s string
		if len(args) > 0 {
			_ = json.Unmarshal(args[0], &s)
		}
		received <- s
	})

	if _, err := peer.Call(ctx, "withCallback", []any{cb}); err != nil {
		return fmt.Errorf("withCallback: %w", err)
	}

	select {
	case got := <-received:
		if got != "callback:stdio" {
			return fmt.Errorf("withCallback: expected %q, got %q", "callback:stdio", got)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("withCallback: callback never invoked: %w", ctx.Err())
	}
}

func scenarioGetSet(ctx context.Context, peer *kkrpc.Peer) error {
	result, err := peer.Get(ctx, []string{"session", "greeting"})
	if err != nil {
		return fmt.Errorf("get session.greeting: %w", err)
	}
	var greeting string
	if err := json.Unmarshal(result, &greeting); err != nil {
		return fmt.Errorf("get session.greeting: decode: %w", err)
	}
	if greeting != "hello from the server" {
		return fmt.Errorf("get session.greeting: unexpected value %q", greeting)
	}

	if err := peer.Set(ctx, []string{"session", "greeting"}, "updated"); err != nil {
		return fmt.Errorf("set session.greeting: %w", err)
	}
	result, err = peer.Get(ctx, []string{"session", "greeting"})
	if err != nil {
		return fmt.Errorf("get session.greeting after set: %w", err)
	}
	if err := json.Unmarshal(result, &greeting); err != nil {
		return fmt.Errorf("get session.greeting after set: decode: %w", err)
	}
	if greeting != "updated" {
		return fmt.Errorf("set session.greeting: expected %q, got %q", "updated", greeting)
	}
	return nil
}

func scenarioUnknownMethod(ctx context.Context, peer *kkrpc.Peer) error {
	result, err := peer.Call(ctx, "does.not.exist", nil)
	if err != nil {
		return fmt.Errorf("unknown method: expected no error, got %w", err)
	}
	if string(result) != "null" {
		return fmt.Errorf("unknown method: expected a null result, got %s", result)
	}
	return nil
}
