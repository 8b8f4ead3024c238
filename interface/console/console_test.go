// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package console

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type loopback struct {
	in  io.Reader
	out bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error) {
	return l.in.Read(p)
}

func (l *loopback) Write(p []byte) (int, error) {
	return l.out.Write(p)
}

func TestPoll(t *testing.T) {
	rw := &loopback{in: strings.NewReader("1\r\n120\r\n\r\ng\n")}
	c := New(rw, DefaultDepth)

	<-c.Done()
	if c.Err() != nil {
		t.Fatalf("unexpected error %v", c.Err())
	}

	want := []string{"1", "120", "", "g"}
	for i, w := range want {
		line, ok := c.Poll()
		if !ok || line != w {
			t.Fatalf("%d: expected %q, got %q (%v)", i, w, line, ok)
		}
	}

	if _, ok := c.Poll(); ok {
		t.Fatalf("expected nothing left")
	}

	c.Write([]byte("hello"))
	if rw.out.String() != "hello" {
		t.Fatalf("expected writes passed through, got %q", rw.out.String())
	}
}

func TestPollEmpty(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	c := New(&loopback{in: r}, 1)
	if _, ok := c.Poll(); ok {
		t.Fatalf("expected Poll not to block or return anything")
	}
}
