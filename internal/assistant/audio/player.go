package audio

import (
	"errors"
	"sync"
	"time"

	logx "github.com/finpal-core-poc-v1/assistant/pkg/logger"
)

type StopReason string

const (
	Finished StopReason = "finished"
	Stopped  StopReason = "stopped"
)

const defaultTick = 20 * time.Millisecond

var ErrNilBuffer = errors.New("audio: nothing to play")

// Player owns the single active playback. Starting a new playback stops and
// releases the previous one.
type Player struct {
	sink Sink
	tick time.Duration

	playMu sync.Mutex // serializes Play
	mu     sync.Mutex
	active *Handle
}

func NewPlayer(sink Sink) *Player {
	if sink == nil {
		sink = &DiscardSink{}
	}
	return &Player{sink: sink, tick: defaultTick}
}

// Play opens a fresh stream and writes buf in paced chunks. onDone runs exactly
// once, from the playback goroutine, when the audio finishes or is stopped. It is
// not called when Play returns an error.
func (p *Player) Play(buf *Buffer, onDone func(StopReason)) (*Handle, error) {
	if buf == nil || len(buf.Bytes()) == 0 {
		return nil, ErrNilBuffer
	}
	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.Stop()

	stream, err := p.sink.Open(buf.SampleRate(), buf.Channels())
	if err != nil {
		return nil, err
	}

	h := &Handle{
		player: p,
		stream: stream,
		onDone: onDone,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.mu.Lock()
	p.active = h
	p.mu.Unlock()

	chunk := bytesPerSecond(buf.SampleRate(), buf.Channels()) * int(p.tick) / int(time.Second)
	if chunk <= 0 {
		chunk = 960
	}
	chunk -= chunk % 2
	go h.run(buf.Bytes(), chunk, p.tick)

	logx.Debug().Dur("duration", buf.Duration()).Msg("playback started")
	return h, nil
}

// Stop stops the active playback, if any. It does not wait for release.
func (p *Player) Stop() {
	p.mu.Lock()
	h := p.active
	p.active = nil
	p.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Active returns the current handle or nil.
func (p *Player) Active() *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Player) release(h *Handle) {
	p.mu.Lock()
	if p.active == h {
		p.active = nil
	}
	p.mu.Unlock()
}

// Handle is one playback in progress.
type Handle struct {
	player *Player
	stream Stream
	onDone func(StopReason)

	stopOnce   sync.Once
	stopCh     chan struct{}
	finishOnce sync.Once
	done       chan struct{}
	reason     StopReason
}

// Stop is idempotent and safe to call after the playback finished.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		close(h.stopCh)
		_ = h.stream.Abort()
	})
}

// Done is closed once the playback is released.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Reason is valid after Done is closed.
func (h *Handle) Reason() StopReason {
	<-h.done
	return h.reason
}

func (h *Handle) stopped() bool {
	select {
	case <-h.stopCh:
		return true
	default:
		return false
	}
}

func (h *Handle) run(pcm []byte, chunk int, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for off := 0; off < len(pcm); off += chunk {
		if h.stopped() {
			h.finish(Stopped)
			return
		}
		end := min(off+chunk, len(pcm))
		if err := h.stream.Write(pcm[off:end]); err != nil {
			if !h.stopped() {
				logx.Warn().Err(err).Msg("audio stream write failed")
			}
			h.Stop()
			h.finish(Stopped)
			return
		}
		select {
		case <-h.stopCh:
			h.finish(Stopped)
			return
		case <-ticker.C:
		}
	}

	if err := h.stream.Close(); err != nil && !h.stopped() {
		logx.Debug().Err(err).Msg("audio stream closed with error")
	}
	if h.stopped() {
		h.finish(Stopped)
		return
	}
	h.finish(Finished)
}

func (h *Handle) finish(reason StopReason) {
	h.finishOnce.Do(func() {
		h.reason = reason
		h.player.release(h)
		close(h.done)
		if h.onDone != nil {
			h.onDone(reason)
		}
	})
}
