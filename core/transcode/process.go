package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/navidrome/mediaserver/conf"
	"github.com/navidrome/mediaserver/log"
	"github.com/navidrome/mediaserver/model/id"
)

// process owns one in-flight transcoder: the forked command, its FIFO, and
// the ring buffer the pump goroutine feeds (spec §4.E).
type process struct {
	cmd      *exec.Cmd
	fifoPath string
	rb       *ringBuffer
	done     atomic.Bool
}

// spawn forks profile.Command with %in/%out substituted, creates a FIFO in
// runtimeDir, and starts a goroutine pumping FIFO bytes into the ring
// buffer until the process exits.
func spawn(ctx context.Context, profile conf.TranscodeProfile, runtimeDir, inputPath string, rangeStart int64) (*process, error) {
	if err := os.MkdirAll(runtimeDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcode: runtime dir: %w", err)
	}
	fifoPath := filepath.Join(runtimeDir, "tr-"+id.NewRandom()+".fifo")
	if err := syscall.Mkfifo(fifoPath, 0o600); err != nil {
		return nil, fmt.Errorf("transcode: mkfifo: %w", err)
	}

	args := templateArgs(profile.Arguments, inputPath, fifoPath, rangeStart)
	cmd := exec.CommandContext(ctx, profile.Command, args...)
	cmd.Env = os.Environ()
	for k, v := range profile.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Start(); err != nil {
		os.Remove(fifoPath)
		return nil, fmt.Errorf("transcode: start %s: %w", profile.Command, err)
	}

	bufSize := profile.BufferSize
	if bufSize <= 0 {
		bufSize = 1 << 20
	}
	p := &process{
		cmd:      cmd,
		fifoPath: fifoPath,
		rb:       newRingBuffer(bufSize, profile.InitialFillSize),
	}

	go p.pump(ctx, profile)
	return p, nil
}

// pump opens the read end of the FIFO (blocking until the transcoder opens
// its write end), copies bytes into the ring buffer in chunkSize pieces,
// then reaps the process (logging a non-zero exit) and closes the buffer so
// readers see EOF.
func (p *process) pump(ctx context.Context, profile conf.TranscodeProfile) {
	defer os.Remove(p.fifoPath)

	f, err := os.OpenFile(p.fifoPath, os.O_RDONLY, os.ModeNamedPipe)
	if err != nil {
		log.Error(ctx, "transcode: open fifo", err, "path", p.fifoPath)
		p.rb.CloseWithError(err)
		p.reap(ctx)
		return
	}
	defer f.Close()

	chunkSize := profile.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := p.rb.Write(buf[:n]); werr != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}
	p.reap(ctx)
	p.rb.Close()
}

func (p *process) reap(ctx context.Context) {
	if p.done.Swap(true) {
		return
	}
	err := p.cmd.Wait()
	if err != nil {
		log.Warn(ctx, "transcoder exited", "command", p.cmd.Path, "error", err.Error())
	}
}

// Cancel stops the transcoder: SIGTERM, then SIGKILL after a grace period if
// it hasn't exited (spec §4.E cancellation).
func (p *process) Cancel() {
	if p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	go func() {
		timer := time.NewTimer(2 * time.Second)
		defer timer.Stop()
		exited := make(chan struct{})
		go func() {
			p.cmd.Process.Wait()
			close(exited)
		}()
		select {
		case <-exited:
		case <-timer.C:
			_ = p.cmd.Process.Kill()
		}
	}()
}

// templateArgs splits the profile's argument template on whitespace and
// substitutes %in/%out. When rangeStart > 0 it also substitutes %seek with
// the byte offset; otherwise %seek is left as-is. No argument is appended
// and the profile is not consulted.
func templateArgs(template, inputPath, fifoPath string, rangeStart int64) []string {
	fields := strings.Fields(template)
	args := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, "%in", inputPath)
		f = strings.ReplaceAll(f, "%out", fifoPath)
		if rangeStart > 0 {
			f = strings.ReplaceAll(f, "%seek", strconv.FormatInt(rangeStart, 10))
		}
		args = append(args, f)
	}
	return args
}
