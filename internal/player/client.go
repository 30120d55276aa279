package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// ErrConnectionClosed is returned when the daemon hangs up mid-read.
var ErrConnectionClosed = errors.New("connection closed")

// SocketPath returns the default player socket path.
func SocketPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "tokaido", "player.sock")
}

// Client communicates with the player daemon over a Unix socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// Connect dials the daemon Unix socket.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to player: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Client{conn: conn, scanner: scanner}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SendCommand sends a command and reads one response line. A response with
// ok=false is returned as is; use the typed helpers to get it as an error.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal command: %w", err)
	}

	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("write command: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("read response: %w", err)
		}
		return Response{}, ErrConnectionClosed
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return resp, nil
}

// ReadEvent reads the next NDJSON event line. Blocks until data arrives.
// After calling Subscribe, use this in a loop to receive events.
func (c *Client) ReadEvent() (Event, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Event{}, fmt.Errorf("read event: %w", err)
		}
		return Event{}, ErrConnectionClosed
	}

	var ev Event
	if err := json.Unmarshal(c.scanner.Bytes(), &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	return ev, nil
}

func (c *Client) do(cmd Command) (Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return resp, err
	}
	if !resp.OK {
		return resp, fmt.Errorf("player %s: %s", cmd.Cmd, resp.Error)
	}
	return resp, nil
}

// Status asks the daemon for its current state.
func (c *Client) Status() (Status, error) {
	resp, err := c.do(Command{Cmd: CmdStatus})
	if err != nil {
		return Status{}, err
	}
	return StatusFrom(resp), nil
}

// Subscribe switches the connection to event streaming. Only events named
// in events are sent; none means all.
func (c *Client) Subscribe(events ...string) error {
	_, err := c.do(Command{Cmd: CmdSubscribe, Events: events})
	return err
}

// Play resumes playback.
func (c *Client) Play() error {
	_, err := c.do(Command{Cmd: CmdPlay})
	return err
}

// Pause pauses playback.
func (c *Client) Pause() error {
	_, err := c.do(Command{Cmd: CmdPause})
	return err
}

// Seek moves playback to t seconds. Negative times are clamped to zero.
func (c *Client) Seek(t float64) error {
	if t < 0 {
		t = 0
	}
	_, err := c.do(Command{Cmd: CmdSeek, Time: FloatPtr(t)})
	return err
}

// Load asks the daemon to open the audio file at path.
func (c *Client) Load(path string) error {
	_, err := c.do(Command{Cmd: CmdLoad, Path: path})
	return err
}
