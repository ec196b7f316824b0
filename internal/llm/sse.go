package llm

import (
	"bufio"
	"io"
)

// serverSentEventScanner reads Server-Sent Events line by line.
type serverSentEventScanner struct {
	scanner *bufio.Scanner
}

func newServerSentEventScanner(r io.Reader) *serverSentEventScanner {
	sc := bufio.NewScanner(r)
	// Argument fragments for large tool calls can produce long lines.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &serverSentEventScanner{scanner: sc}
}

// Scan reads the next line of data.
func (s *serverSentEventScanner) Scan() bool {
	return s.scanner.Scan()
}

// Text returns the last scanned line.
func (s *serverSentEventScanner) Text() string {
	return s.scanner.Text()
}

// Err returns the first non-EOF error encountered while scanning.
func (s *serverSentEventScanner) Err() error {
	return s.scanner.Err()
}
