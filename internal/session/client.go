package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// stopTimeout bounds the graceful shutdown handshake before the process is
// killed outright.
const stopTimeout = 5 * time.Second

// Client is one running language server bound to one workspace root. The
// wire protocol is opaque to the manager beyond the start and stop
// handshakes.
type Client struct {
	ID   uuid.UUID
	Root string

	cmd  *exec.Cmd
	conn jsonrpc2.Conn
	log  *log.Logger
}

// stdio adapts a subprocess's stdout/stdin pair into the ReadWriteCloser
// the jsonrpc2 stream wants.
type stdio struct {
	io.ReadCloser
	io.WriteCloser
}

func (s stdio) Close() error {
	werr := s.WriteCloser.Close()
	rerr := s.ReadCloser.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Start spawns the server binary for root, attaches a jsonrpc2 transport
// over its standard I/O, and completes the initialize handshake.
func Start(ctx context.Context, logger *log.Logger, binPath string, args []string, root string) (*Client, error) {
	cmd := exec.Command(binPath, args...)
	cmd.Dir = root
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", binPath, err)
	}

	id := uuid.New()
	client := &Client{
		ID:   id,
		Root: root,
		cmd:  cmd,
		conn: jsonrpc2.NewConn(jsonrpc2.NewStream(stdio{stdout, stdin})),
		log:  logger.With("client", id.String(), "root", root),
	}

	client.conn.Go(ctx, jsonrpc2.MethodNotFoundHandler)

	if err := client.initialize(ctx); err != nil {
		client.conn.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("initialize client for %s: %w", root, err)
	}

	client.log.Debug("client running", "pid", cmd.Process.Pid)
	return client, nil
}

// initialize performs the protocol's startup handshake.
func (c *Client) initialize(ctx context.Context) error {
	params := &protocol.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   uri.File(c.Root),
	}

	var result protocol.InitializeResult
	if _, err := c.conn.Call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}
	if err := c.conn.Notify(ctx, protocol.MethodInitialized, &protocol.InitializedParams{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// Stop shuts the server down and waits for the process to exit. The
// shutdown/exit handshake is attempted first; a server that ignores it is
// killed after stopTimeout. Stop returns only once the process's exit is
// confirmed.
func (c *Client) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	if _, err := c.conn.Call(ctx, protocol.MethodShutdown, nil, nil); err != nil {
		c.log.Debug("shutdown request failed", "error", err)
	}
	if err := c.conn.Notify(ctx, protocol.MethodExit, nil); err != nil {
		c.log.Debug("exit notification failed", "error", err)
	}
	c.conn.Close()

	done := make(chan error, 1)
	go func() {
		done <- c.cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			// Non-zero exit during teardown is expected from some builds.
			c.log.Debug("client exited", "error", err)
		}
		return nil
	case <-ctx.Done():
		c.log.Warn("client ignored shutdown, killing", "pid", c.cmd.Process.Pid)
		if err := c.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("kill client for %s: %w", c.Root, err)
		}
		<-done
		return nil
	}
}
