package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// FileSource replays a captured device log. With a positive delay it paces
// output line by line like the real device.
type FileSource struct {
	handle
	path  string
	delay time.Duration
}

func NewFileSource(path string, delay time.Duration) *FileSource {
	return &FileSource{path: path, delay: delay}
}

func (s *FileSource) Open(_ context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	if s.delay <= 0 {
		s.set(f)
		return nil
	}
	s.set(newPacedReader(f, s.delay))
	return nil
}

func (s *FileSource) String() string {
	return "file:" + s.path
}

// pacedReader hands out one line per tick.
type pacedReader struct {
	f       *os.File
	br      *bufio.Reader
	delay   time.Duration
	pending []byte
	first   bool

	once sync.Once
	done chan struct{}
}

func newPacedReader(f *os.File, delay time.Duration) *pacedReader {
	return &pacedReader{f: f, br: bufio.NewReader(f), delay: delay, first: true, done: make(chan struct{})}
}

func (p *pacedReader) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		if !p.first {
			t := time.NewTimer(p.delay)
			select {
			case <-t.C:
			case <-p.done:
				t.Stop()
				return 0, io.ErrClosedPipe
			}
		}
		p.first = false

		line, err := p.br.ReadBytes('\n')
		if len(line) == 0 {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		p.pending = line
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *pacedReader) Close() error {
	p.once.Do(func() { close(p.done) })
	return p.f.Close()
}
