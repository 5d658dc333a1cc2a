package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ProcessConfig configures a ProcessClassifier.
type ProcessConfig struct {
	Python      string        // interpreter, default "python3"
	Script      string        // inference service script
	ModelPath   string        // model file passed to the script
	Timeout     time.Duration // per-call timeout, default 2s
	IdleTimeout time.Duration // stop the process after this long unused, 0 keeps it running
}

// ProcessClassifier runs the model in a long-lived subprocess.
//
// Request framing on stdin: uint32 big-endian payload length, then the
// payload: uint32 BE seq_len, uint32 BE feat_dim, seq_len*feat_dim float32
// little-endian values. The process answers each request with one JSON line
// {"output":[...]} or {"error":"..."}.
type ProcessClassifier struct {
	config ProcessConfig

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	closed    bool
	idleTimer *time.Timer
	// idleGen identifies the armed idle timer; a callback for an older
	// generation does nothing.
	idleGen uint64
}

// NewProcessClassifier validates config; the process starts on first use.
func NewProcessClassifier(config ProcessConfig) (*ProcessClassifier, error) {
	if config.Script == "" {
		return nil, fmt.Errorf("inference script not configured")
	}
	if _, err := os.Stat(config.Script); err != nil {
		return nil, fmt.Errorf("inference script: %w", err)
	}
	if config.Python == "" {
		config.Python = "python3"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	return &ProcessClassifier{config: config}, nil
}

// Classify sends one window and waits for its scores.
// On timeout or a broken pipe the process is killed and restarted on the next call.
func (c *ProcessClassifier) Classify(ctx context.Context, input Tensor) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClassifierClosed
	}
	if err := c.ensureStarted(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	type reply struct {
		line []byte
		err  error
	}
	done := make(chan reply, 1)
	stdin, stdout := c.stdin, c.stdout
	go func() {
		if err := stdinWrite(stdin, input); err != nil {
			done <- reply{err: err}
			return
		}
		line, err := stdout.ReadBytes('\n')
		done <- reply{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		// The exchange is abandoned mid-stream; the process is no longer in a known state.
		c.kill()
		return nil, fmt.Errorf("classifier process: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			c.kill()
			return nil, fmt.Errorf("classifier process: %w", r.err)
		}
		c.resetIdleTimer()
		return decodeOutput(r.line)
	}
}

// Close stops the subprocess.
func (c *ProcessClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.stop()
}

func (c *ProcessClassifier) ensureStarted() error {
	if c.started {
		return nil
	}

	args := []string{c.config.Script}
	if c.config.ModelPath != "" {
		args = append(args, c.config.ModelPath)
	}
	cmd := exec.Command(c.config.Python, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start classifier process: %w", err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	c.started = true
	return nil
}

// stop closes stdin and waits for a clean exit. Must hold c.mu.
func (c *ProcessClassifier) stop() error {
	if !c.started {
		return nil
	}
	c.stopIdleTimer()
	c.stdin.Close()
	err := c.cmd.Wait()
	c.reset()
	return err
}

// kill terminates the process without waiting for it to drain. Must hold c.mu.
func (c *ProcessClassifier) kill() {
	if !c.started {
		return
	}
	c.stopIdleTimer()
	c.cmd.Process.Kill()
	c.stdin.Close()
	go c.cmd.Wait()
	c.reset()
}

func (c *ProcessClassifier) reset() {
	c.started = false
	c.cmd = nil
	c.stdin = nil
	c.stdout = nil
}

// resetIdleTimer arms the idle timer after a call. Must hold c.mu.
func (c *ProcessClassifier) resetIdleTimer() {
	if c.config.IdleTimeout <= 0 {
		return
	}
	c.stopIdleTimer()
	gen := c.idleGen
	c.idleTimer = time.AfterFunc(c.config.IdleTimeout, func() { c.idleExpired(gen) })
}

// stopIdleTimer disarms the idle timer, including a callback that has
// already fired and is waiting for c.mu. Must hold c.mu.
func (c *ProcessClassifier) stopIdleTimer() {
	c.idleGen++
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

func (c *ProcessClassifier) idleExpired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.idleGen {
		return
	}
	c.stop()
}

// encodeRequest builds the binary request payload, without the length prefix.
func encodeRequest(input Tensor) []byte {
	var buf bytes.Buffer
	buf.Grow(8 + 4*len(input.Data))

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(input.SeqLen))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(input.FeatDim))
	buf.Write(hdr[:])

	var word [4]byte
	for _, v := range input.Data {
		binary.LittleEndian.PutUint32(word[:], math.Float32bits(v))
		buf.Write(word[:])
	}
	return buf.Bytes()
}

func stdinWrite(w io.Writer, input Tensor) error {
	payload := encodeRequest(input)

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := w.Write(length[:]); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// decodeOutput parses a response line into validated scores.
func decodeOutput(line []byte) ([]float64, error) {
	var resp struct {
		Output []float64 `json:"output"`
		Error  string    `json:"error"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("classifier process: %s", resp.Error)
	}
	if err := ValidateOutput(resp.Output); err != nil {
		return nil, err
	}
	return resp.Output, nil
}
