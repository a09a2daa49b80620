package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/untoldecay/elixir/internal/types"
)

// Client dials an elixir serve socket and issues Query Interface operations against it.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to the Unix socket at socketPath, the same net.Conn-over-Unix-domain-socket
// transport as the teacher's client.go, generalized from "wait for the daemon" probing to a
// plain dial since elixir serve has no separate lock-file startup race to account for.
func Dial(socketPath string) (*Client, error) {
	return DialTimeout(socketPath, 2*time.Second)
}

// DialTimeout connects with an explicit dial timeout.
func DialTimeout(socketPath string, dialTimeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", socketPath, err)
	}
	return &Client{conn: conn, timeout: 30 * time.Second}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetTimeout overrides the per-request deadline.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Execute sends one request and waits for its response, exactly the newline-delimited
// JSON-over-net.Conn round trip the teacher's Client.ExecuteWithCwd performs.
func (c *Client) Execute(operation string, args interface{}) (*Response, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshaling args: %w", err)
	}

	req := Request{Operation: operation, Args: argsJSON}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("setting deadline: %w", err)
		}
	}

	writer := bufio.NewWriter(c.conn)
	if _, err := writer.Write(reqJSON); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return nil, fmt.Errorf("writing newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("flushing request: %w", err)
	}

	reader := bufio.NewReader(c.conn)
	respLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if !resp.Success {
		return &resp, fmt.Errorf("operation failed: %s", resp.Error)
	}
	return &resp, nil
}

// Ping verifies the server is alive.
func (c *Client) Ping() error {
	_, err := c.Execute(OpPing, struct{}{})
	return err
}

// File calls the file operation and decodes its result.
func (c *Client) File(tag, path string) (*FileResponse, error) {
	resp, err := c.Execute(OpFile, FileArgs{Tag: tag, Path: path})
	if err != nil {
		return nil, err
	}
	var out FileResponse
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("decoding file response: %w", err)
	}
	return &out, nil
}

// Ident calls the ident operation and decodes its result.
func (c *Client) Ident(tag, ident string, family types.Family) (*IdentResponse, error) {
	resp, err := c.Execute(OpIdent, IdentArgs{Tag: tag, Ident: ident, Family: string(family)})
	if err != nil {
		return nil, err
	}
	var out IdentResponse
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("decoding ident response: %w", err)
	}
	return &out, nil
}

// Search calls the search operation and decodes its result.
func (c *Client) Search(prefix string) ([]string, error) {
	resp, err := c.Execute(OpSearch, SearchArgs{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return out, nil
}

// FileResponse mirrors query.FileResult over the wire.
type FileResponse struct {
	Tag         string             `json:"Tag"`
	Path        string             `json:"Path"`
	Blob        types.BlobNumber   `json:"Blob"`
	Annotations []types.Annotation `json:"Annotations"`
}

// IdentDefSite mirrors query.DefSite over the wire.
type IdentDefSite struct {
	Path string     `json:"Path"`
	Line int        `json:"Line"`
	Kind types.Kind `json:"Kind"`
}

// IdentRefSite mirrors query.RefSite over the wire.
type IdentRefSite struct {
	Path  string `json:"Path"`
	Lines []int  `json:"Lines"`
}

// IdentResponse mirrors query.IdentResult over the wire.
type IdentResponse struct {
	Ident string         `json:"Ident"`
	Defs  []IdentDefSite `json:"Defs"`
	Refs  []IdentRefSite `json:"Refs"`
}
