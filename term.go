package main

import (
	"bytes"
	"context"
	"io"
	"os"

	"golang.org/x/term"
)

// ctrlC is what an interrupt keystroke reads as once the terminal is raw.
const ctrlC = 0x03

// crlfWriter restores the carriage returns a raw terminal no longer adds.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// interruptReader cancels when it reads an interrupt keystroke.
type interruptReader struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (i interruptReader) Read(p []byte) (int, error) {
	n, err := i.r.Read(p)
	if bytes.IndexByte(p[:n], ctrlC) >= 0 {
		i.cancel()
		return 0, io.EOF
	}
	return n, err
}

// operatorConsole is the character stream the provisioning dialogue runs on.
type operatorConsole struct {
	in      io.Reader
	out     io.Writer
	restore func()
}

// openConsole opens the device at path, or uses stdin and stdout when path
// is empty. A terminal is switched to raw mode so that the single trigger
// keystroke arrives without Enter. cancel is called when a Ctrl-C byte
// arrives, raw or not.
func openConsole(path string, stdin io.Reader, stdout io.Writer, cancel context.CancelFunc) (*operatorConsole, error) {
	c := &operatorConsole{in: stdin, out: stdout, restore: func() {}}

	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}
		c.in, c.out = f, f
		c.restore = func() { f.Close() }
	} else if in, ok := stdin.(*os.File); ok {
		f = in
	}

	c.in = interruptReader{r: c.in, cancel: cancel}

	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return c, nil
	}
	fd := int(f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return c, nil
	}
	closeFile := c.restore
	c.restore = func() {
		term.Restore(fd, state)
		closeFile()
	}
	c.out = crlfWriter{w: c.out}
	return c, nil
}
