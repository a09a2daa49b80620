package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/untoldecay/elixir/internal/query"
	"github.com/untoldecay/elixir/internal/types"
)

// Server listens on a Unix socket and answers Query Interface operations (spec §4.7) for
// whatever has been committed to the database so far. It holds no mutable state of its own;
// every request is served straight off the underlying database connection.
type Server struct {
	socketPath string
	queries    *query.Interface
	listener   net.Listener

	mu   sync.Mutex
	done bool
}

// NewServer builds a Server that will listen at socketPath and answer against queries.
func NewServer(socketPath string, queries *query.Interface) *Server {
	return &Server{socketPath: socketPath, queries: queries}
}

// Serve listens on the Unix socket and handles connections until ctx is cancelled or Close is
// called. Each connection is handled on its own goroutine; a connection carries one
// newline-delimited JSON request and one newline-delimited JSON response, matching the
// teacher's client.go framing exactly so a single Client implementation works against either.
func (s *Server) Serve(ctx context.Context) error {
	_ = os.Remove(s.socketPath)
	l, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := l.Accept()
		if err != nil {
			wg.Wait()
			s.mu.Lock()
			closed := s.done
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Close stops accepting new connections and removes the socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	_ = os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return
	}

	var req Request
	var resp Response
	if err := json.Unmarshal(line, &req); err != nil {
		resp = Response{Success: false, Error: fmt.Sprintf("malformed request: %v", err)}
	} else {
		resp = s.handleRequest(ctx, &req)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return
	}
	writer := bufio.NewWriter(conn)
	_, _ = writer.Write(out)
	_, _ = writer.WriteString("\n")
	_ = writer.Flush()
}

func (s *Server) handleRequest(ctx context.Context, req *Request) Response {
	switch req.Operation {
	case OpPing:
		return Response{Success: true}
	case OpFile:
		return s.handleFile(ctx, req)
	case OpIdent:
		return s.handleIdent(ctx, req)
	case OpSearch:
		return s.handleSearch(ctx, req)
	default:
		return Response{Success: false, Error: fmt.Sprintf("unknown operation: %s", req.Operation)}
	}
}

func fail(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

func ok(data interface{}) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return fail(err)
	}
	return Response{Success: true, Data: raw}
}

func (s *Server) handleFile(ctx context.Context, req *Request) Response {
	var args FileArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(fmt.Errorf("decoding file args: %w", err))
	}
	result, err := s.queries.File(ctx, args.Tag, args.Path)
	if err != nil {
		return fail(err)
	}
	return ok(result)
}

func (s *Server) handleIdent(ctx context.Context, req *Request) Response {
	var args IdentArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(fmt.Errorf("decoding ident args: %w", err))
	}
	if args.Family == "" {
		return fail(errors.New("ident requires a family"))
	}
	result, err := s.queries.Ident(ctx, args.Tag, args.Ident, types.Family(args.Family))
	if err != nil {
		return fail(err)
	}
	return ok(result)
}

func (s *Server) handleSearch(ctx context.Context, req *Request) Response {
	var args SearchArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(fmt.Errorf("decoding search args: %w", err))
	}
	result, err := s.queries.Search(ctx, args.Prefix)
	if err != nil {
		return fail(err)
	}
	return ok(result)
}
