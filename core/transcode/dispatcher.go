package transcode

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/navidrome/mediaserver/conf"
	"github.com/navidrome/mediaserver/core/dispatch"
	"github.com/navidrome/mediaserver/log"
)

// Dispatcher forks external transcoders per profile and streams their
// output through a ring buffer (spec §4.E). It implements
// core/dispatch.Transcoder.
type Dispatcher struct {
	Profiles   map[string]conf.TranscodeProfile
	RuntimeDir string

	breakers map[string]*gobreaker.CircuitBreaker[*process]
}

func NewDispatcher(profiles []conf.TranscodeProfile, runtimeDir string) *Dispatcher {
	byName := make(map[string]conf.TranscodeProfile, len(profiles))
	breakers := make(map[string]*gobreaker.CircuitBreaker[*process], len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
		breakers[p.Name] = gobreaker.NewCircuitBreaker[*process](gobreaker.Settings{
			Name:        "transcode:" + p.Name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}
	return &Dispatcher{Profiles: byName, RuntimeDir: runtimeDir, breakers: breakers}
}

func (d *Dispatcher) InitialFillSize(profileName string) int {
	if p, ok := d.Profiles[profileName]; ok {
		return p.InitialFillSize
	}
	return 0
}

// Open forks (or, on seek, re-forks) profileName against inputPath and
// returns a handler streaming its stdout FIFO.
func (d *Dispatcher) Open(ctx context.Context, profileName, inputPath string, params map[string]string, rangeStart int64) (dispatch.IOHandler, error) {
	profile, ok := d.Profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("transcode: unknown profile %q", profileName)
	}
	breaker := d.breakers[profileName]

	p, err := breaker.Execute(func() (*process, error) {
		return spawn(ctx, profile, d.RuntimeDir, inputPath, rangeStart)
	})
	if err != nil {
		log.Error(ctx, "transcode: spawn failed", err, "profile", profileName)
		return nil, err
	}

	return &Handle{
		dispatcher: d,
		profile:    profile,
		inputPath:  inputPath,
		params:     params,
		proc:       p,
		limiter:    rate.NewLimiter(rate.Inf, profile.ChunkSize),
	}, nil
}

// Handle is the IOHandler Open() returns: reads pull from the current
// process's ring buffer; Seek on an acceptURL profile closes it and
// respawns with an adjusted range, otherwise it fails (spec §4.E).
type Handle struct {
	dispatcher *Dispatcher
	profile    conf.TranscodeProfile
	inputPath  string
	params     map[string]string
	proc       *process
	limiter    *rate.Limiter
	offset     int64
}

func (h *Handle) Read(p []byte) (int, error) {
	n, err := h.proc.rb.Read(p)
	h.offset += int64(n)
	return n, err
}

// Seek only supports io.SeekStart, respawning the transcoder at the
// requested byte offset when the profile is marked acceptURL/stateless;
// any other whence or a non-seekable profile is rejected.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return 0, fmt.Errorf("transcode: only SeekStart is supported")
	}
	if !h.profile.AcceptURL {
		return 0, fmt.Errorf("transcode: profile %q does not support seeking", h.profile.Name)
	}
	h.proc.Cancel()
	p, err := spawn(context.Background(), h.profile, h.dispatcher.RuntimeDir, h.inputPath, offset)
	if err != nil {
		return 0, err
	}
	h.proc = p
	h.offset = offset
	return offset, nil
}

func (h *Handle) Close() error {
	h.proc.Cancel()
	return nil
}
