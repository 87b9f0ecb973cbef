// Package ioport implements the IO vtable external collaborator spec §6
// names ("an IO vtable {open, read, write, unread, close} for the `print`
// and stream primitives"), supplemented from
// _examples/original_source/io_core.c and primitive_io.c's file_t/ring
// buffer contract: a named, flag-tagged stream with a push-back buffer.
//
// Grounded on the teacher's (deleted) internal/network/websocket.go for
// the WebSocketConn connection-wrapper shape and internal/filesystem's
// path handling conventions for the local-file backend.
package ioport

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/b0nefish/poprc/internal/cell"
)

// Flags mirror io_core.c's FILE_IN/FILE_OUT/FILE_STREAM bits.
type Flags uint8

const (
	FlagIn Flags = 1 << iota
	FlagOut
	FlagStream
)

// Port is the IO vtable spec §6 says the core consumes but never
// implements itself: Open/Read/Write/Unread/Close against a named stream,
// addressed by the cell.Value.Handle a successful Open returns.
type Port interface {
	Open(name string, flags Flags) (cell.Value, error)
	Read(handle uint64, n int) (string, error)
	Write(handle uint64, data string) error
	Unread(handle uint64, data string) error
	Close(handle uint64) error
}

// stream is one open handle's state, keyed by an opaque handle id.
type stream struct {
	name    string
	flags   Flags
	r       *bufio.Reader
	w       io.Writer
	closer  io.Closer
	pending []byte // Unread push-back, consumed before r
}

// LocalFile is the default Port backend: stdin/stdout/stderr plus
// os.Open/os.Create for named files, exactly the "in"/"out" prefix
// convention io_core.c's parse_file_prefix recognizes.
type LocalFile struct {
	mu      sync.Mutex
	streams map[uint64]*stream
	next    uint64
}

// NewLocalFile constructs a LocalFile Port with the standard streams
// pre-registered under handles 0 (stdin), 1 (stdout), 2 (stderr) — the
// same descriptor numbering io_core.c's stream_stdin/stream_stdout use.
func NewLocalFile() *LocalFile {
	p := &LocalFile{streams: make(map[uint64]*stream)}
	p.streams[0] = &stream{name: "stdin", flags: FlagIn | FlagStream, r: bufio.NewReader(os.Stdin)}
	p.streams[1] = &stream{name: "stdout", flags: FlagOut | FlagStream, w: os.Stdout}
	p.streams[2] = &stream{name: "stderr", flags: FlagOut | FlagStream, w: os.Stderr}
	p.next = 3
	return p
}

func (p *LocalFile) Open(name string, flags Flags) (cell.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &stream{name: name, flags: flags}
	if flags&FlagOut != 0 {
		f, err := os.Create(name)
		if err != nil {
			return cell.Value{}, fmt.Errorf("ioport: open %q for write: %w", name, err)
		}
		s.w, s.closer = f, f
	} else {
		f, err := os.Open(name)
		if err != nil {
			return cell.Value{}, fmt.Errorf("ioport: open %q for read: %w", name, err)
		}
		s.r, s.closer = bufio.NewReader(f), f
	}

	h := p.next
	p.next++
	p.streams[h] = s
	return cell.Value{Kind: cell.VHandle, Handle: h}, nil
}

func (p *LocalFile) Read(handle uint64, n int) (string, error) {
	p.mu.Lock()
	s, ok := p.streams[handle]
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("ioport: unknown handle %d", handle)
	}
	if len(s.pending) > 0 {
		take := n
		if take > len(s.pending) {
			take = len(s.pending)
		}
		out := string(s.pending[:take])
		s.pending = s.pending[take:]
		return out, nil
	}
	if s.r == nil {
		return "", fmt.Errorf("ioport: handle %d is not open for reading", handle)
	}
	buf := make([]byte, n)
	read, err := s.r.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	return string(buf[:read]), nil
}

func (p *LocalFile) Write(handle uint64, data string) error {
	p.mu.Lock()
	s, ok := p.streams[handle]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("ioport: unknown handle %d", handle)
	}
	if s.w == nil {
		return fmt.Errorf("ioport: handle %d is not open for writing", handle)
	}
	_, err := io.WriteString(s.w, data)
	return err
}

// Unread pushes data back so the next Read observes it first, per
// io_core.c's ring_buffer push-back (here a plain byte slice since Go
// streams need no fixed-capacity ring).
func (p *LocalFile) Unread(handle uint64, data string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[handle]
	if !ok {
		return fmt.Errorf("ioport: unknown handle %d", handle)
	}
	s.pending = append([]byte(data), s.pending...)
	return nil
}

func (p *LocalFile) Close(handle uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[handle]
	if !ok {
		return fmt.Errorf("ioport: unknown handle %d", handle)
	}
	delete(p.streams, handle)
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Printer adapts a Port to package ops.Printer: `print` always targets
// handle 1 (stdout), newline-terminated.
type Printer struct {
	Port Port
}

func (p Printer) Print(v *cell.Value) error {
	return p.Port.Write(1, formatValue(v)+"\n")
}

func formatValue(v *cell.Value) string {
	switch v.Kind {
	case cell.VInt:
		return fmt.Sprintf("%d", v.I)
	case cell.VFloat:
		return fmt.Sprintf("%g", v.F)
	case cell.VSymbol:
		return v.Sym
	case cell.VString:
		return v.Str
	case cell.VHandle:
		return fmt.Sprintf("<handle %d>", v.Handle)
	default:
		return fmt.Sprintf("%v", v.Kind)
	}
}

// dialTimeout mirrors the teacher's WebSocketConnect handshake timeout.
const dialTimeout = 10 * time.Second
