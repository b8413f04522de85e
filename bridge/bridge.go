// Package bridge connects a synthesis engine to a real-time render callback.
//
// A Bridge has two sides. The control side is driven by Run on its own
// goroutine: it receives messages from Send, owns the lifecycle state, the
// buffered instrument bank and engine construction, and emits
// acknowledgments on Acks. The render side is Process, called once per audio
// period by the host. The two sides share only the lifecycle state, the
// engine handle and the render frame clock. Each has exactly one writer.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cwbudde/sf-bridge/engine"
)

var (
	// ErrNoBank is reported by SynthInitFailed when InitSynth arrives
	// before any instrument bank was buffered.
	ErrNoBank = fmt.Errorf("%w: no instrument bank buffered", engine.ErrConfig)
	// ErrInvalidTransition marks lifecycle messages received in a state
	// that does not accept them.
	ErrInvalidTransition = errors.New("bridge: invalid lifecycle transition")
	// ErrInvalidEvent marks musical messages with out-of-range fields.
	ErrInvalidEvent = errors.New("bridge: invalid event")
	// ErrClosed is returned by Send and Flush once Run has returned.
	ErrClosed = errors.New("bridge: closed")
	// ErrRunning is returned by a second concurrent call to Run.
	ErrRunning = errors.New("bridge: already running")
)

const (
	defaultCommandQueue = 256
	defaultAckQueue     = 16
)

// Options configures a Bridge.
type Options struct {
	// Loader compiles LoadEngineModule bytes. Defaults to
	// engine.NativeLoader.
	Loader engine.Loader
	// Logger receives control-side diagnostics. Defaults to zap.NewNop.
	// The render side never logs.
	Logger *zap.Logger
	// CommandQueue is the capacity of the control to render queue. Send
	// blocks while it is full.
	CommandQueue int
	// AckQueue is the capacity of the acknowledgment channel.
	AckQueue int
}

// Bridge is one rendering context. It is not reusable: there is no path out
// of SynthReady.
type Bridge struct {
	id     string
	log    *zap.Logger
	loader engine.Loader

	inbox    chan envelope
	compiled chan compileResult
	commands chan command
	acks     chan Ack
	done     chan struct{}
	running  atomic.Bool

	// Shared with the render side. Written by the control loop only.
	state atomic.Int32
	eng   atomic.Pointer[engineHandle]

	// Written by the render side only.
	frame atomic.Int64

	stats counters

	// Owned by the control loop.
	ctx       context.Context
	factory   engine.Factory
	bank      []byte
	compiling bool
	sched     scheduler
	headers   []engine.PresetHeader
	waiters   []chan struct{}

	// Owned by the render side.
	scratch []float32
}

type engineHandle struct {
	engine engine.Engine
}

// envelope carries either a message or a flush barrier through the inbox.
type envelope struct {
	msg   Message
	flush chan struct{}
}

type compileResult struct {
	factory engine.Factory
	err     error
}

// New creates a bridge in the Uninitialized state. Run must be started
// before messages are handled.
func New(opts Options) *Bridge {
	if opts.Loader == nil {
		opts.Loader = engine.NativeLoader{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CommandQueue <= 0 {
		opts.CommandQueue = defaultCommandQueue
	}
	if opts.AckQueue <= 0 {
		opts.AckQueue = defaultAckQueue
	}
	id := uuid.NewString()
	return &Bridge{
		id:       id,
		log:      opts.Logger.With(zap.String("bridge", id)),
		loader:   opts.Loader,
		inbox:    make(chan envelope),
		compiled: make(chan compileResult, 1),
		commands: make(chan command, opts.CommandQueue),
		acks:     make(chan Ack, opts.AckQueue),
		done:     make(chan struct{}),
		ctx:      context.Background(),
	}
}

// ID returns the unique id the bridge tags its log lines with.
func (b *Bridge) ID() string { return b.id }

// State returns the current lifecycle state.
func (b *Bridge) State() State { return State(b.state.Load()) }

// Frame returns the render frame clock: the number of frames rendered
// since the synth became ready.
func (b *Bridge) Frame() int64 { return b.frame.Load() }

// Stats returns a snapshot of the diagnostics counters.
func (b *Bridge) Stats() Stats { return b.stats.snapshot() }

// Acks returns the acknowledgment channel. The consumer must keep draining
// it: the control loop waits while it is full.
func (b *Bridge) Acks() <-chan Ack { return b.acks }

// Send delivers m to the control loop. Messages from one goroutine are
// handled in the order sent. Send blocks until the control loop takes the
// message, ctx is done, or Run returns.
func (b *Bridge) Send(ctx context.Context, m Message) error {
	if m == nil {
		return errors.New("bridge: nil message")
	}
	return b.enqueue(ctx, envelope{msg: m})
}

// Flush returns once every message sent before it has been fully handled,
// including a pending module compilation and the hand-off of its commands
// to the render queue.
func (b *Bridge) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := b.enqueue(ctx, envelope{flush: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) enqueue(ctx context.Context, env envelope) error {
	select {
	case b.inbox <- env:
		return nil
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run handles control messages until ctx is done. It returns ctx.Err().
func (b *Bridge) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(b.done)
	b.ctx = ctx
	b.log.Debug("control loop started")
	for {
		select {
		case <-ctx.Done():
			b.log.Debug("control loop stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case env := <-b.inbox:
			if env.flush != nil {
				b.waiters = append(b.waiters, env.flush)
				b.releaseWaiters()
				continue
			}
			env.msg.accept(b)
		case res := <-b.compiled:
			b.finishCompile(res)
			b.releaseWaiters()
		}
	}
}

func (b *Bridge) releaseWaiters() {
	if b.compiling {
		return
	}
	for _, w := range b.waiters {
		close(w)
	}
	b.waiters = b.waiters[:0]
}

func (b *Bridge) setState(s State) {
	from := b.State()
	if s <= from {
		return
	}
	b.state.Store(int32(s))
	b.log.Info("lifecycle transition", zap.Stringer("from", from), zap.Stringer("to", s))
}

func (b *Bridge) emit(a Ack) {
	select {
	case b.acks <- a:
	case <-b.ctx.Done():
	}
}

func (b *Bridge) reject(m Message) {
	b.stats.rejectedTransitions.Add(1)
	b.log.Warn("rejected message",
		zap.String("type", m.Type()),
		zap.Stringer("state", b.State()),
		zap.Error(ErrInvalidTransition))
}

// notReady counts musical messages dropped before SynthReady. Nothing is
// queued for later.
func (b *Bridge) notReady(m Message) bool {
	if b.State() == SynthReady {
		return false
	}
	b.stats.droppedNotReady.Add(1)
	b.log.Debug("dropped message before synth ready",
		zap.String("type", m.Type()),
		zap.Stringer("state", b.State()))
	return true
}

func (b *Bridge) bufferBank(bank []byte) {
	if len(bank) == 0 {
		return
	}
	b.bank = slices.Clone(bank)
	b.log.Debug("instrument bank buffered", zap.Int("bytes", len(bank)))
}

func (b *Bridge) loadEngineModule(m LoadEngineModule) {
	b.bufferBank(m.Bank)
	state := b.State()
	if state > EngineBytesPending || b.compiling {
		b.reject(m)
		return
	}
	b.setState(EngineBytesPending)
	b.compiling = true
	module := slices.Clone(m.Module)
	ctx := b.ctx
	b.log.Info("compiling engine module", zap.Int("bytes", len(module)))
	go func() {
		f, err := b.loader.Load(ctx, module)
		if err == nil && f == nil {
			err = errors.New("bridge: loader returned no factory")
		}
		b.compiled <- compileResult{factory: f, err: err}
	}()
}

func (b *Bridge) finishCompile(res compileResult) {
	b.compiling = false
	if res.err != nil {
		b.log.Error("engine module failed to compile", zap.Error(res.err))
		b.emit(ModuleLoadFailed{Err: res.err})
		return
	}
	b.factory = res.factory
	b.setState(EngineLoaded)
	b.emit(ModuleLoaded{})
}

func (b *Bridge) loadInstrumentBank(m LoadInstrumentBank) {
	b.bufferBank(m.Bank)
}

func (b *Bridge) initSynth(m InitSynth) {
	b.bufferBank(m.Bank)
	if b.State() != EngineLoaded {
		b.reject(m)
		return
	}
	if len(b.bank) == 0 {
		b.log.Error("synth init failed", zap.Error(ErrNoBank))
		b.emit(SynthInitFailed{Err: ErrNoBank})
		return
	}
	if m.SampleRate <= 0 {
		err := fmt.Errorf("%w: sample rate %d Hz", engine.ErrConfig, m.SampleRate)
		b.log.Error("synth init failed", zap.Error(err))
		b.emit(SynthInitFailed{Err: err})
		return
	}
	eng, err := b.construct(m.SampleRate)
	if err != nil {
		b.log.Error("synth init failed", zap.Int("sample_rate", m.SampleRate), zap.Error(err))
		b.emit(SynthInitFailed{Err: err})
		return
	}
	headers := eng.PresetHeaders()
	if headers == nil {
		headers = []engine.PresetHeader{}
	}
	b.headers = headers
	b.sched = scheduler{sampleRate: m.SampleRate}
	b.bank = nil
	b.eng.Store(&engineHandle{engine: eng})
	b.setState(SynthReady)
	b.log.Info("synth initialized", zap.Int("sample_rate", m.SampleRate), zap.Int("presets", len(headers)))
	b.emit(SynthInitialized{SampleRate: m.SampleRate})
}

// construct runs the factory, converting a panic into an error.
func (b *Bridge) construct(sampleRate int) (eng engine.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bridge: engine construction panicked: %v", r)
		}
	}()
	eng, err = b.factory(b.bank, sampleRate)
	if err == nil && eng == nil {
		err = errors.New("bridge: factory returned no engine")
	}
	return eng, err
}

func (b *Bridge) noteOn(m NoteOn) {
	if b.notReady(m) {
		return
	}
	b.schedule(m, func(now int64) (command, error) { return b.sched.noteOn(m, now) })
}

func (b *Bridge) noteOff(m NoteOff) {
	if b.notReady(m) {
		return
	}
	b.schedule(m, func(now int64) (command, error) { return b.sched.noteOff(m, now) })
}

func (b *Bridge) selectProgram(m SelectProgram) {
	if b.notReady(m) {
		return
	}
	b.schedule(m, func(now int64) (command, error) { return b.sched.selectProgram(m, now) })
}

func (b *Bridge) schedule(m Message, build func(now int64) (command, error)) {
	cmd, err := build(b.frame.Load())
	if err != nil {
		b.stats.invalidEvents.Add(1)
		b.log.Warn("invalid event", zap.String("type", m.Type()), zap.Error(err))
		return
	}
	select {
	case b.commands <- cmd:
	case <-b.ctx.Done():
	}
}

func (b *Bridge) queryPresetHeaders(m QueryPresetHeaders) {
	if b.notReady(m) {
		return
	}
	b.emit(PresetHeadersGot{Headers: slices.Clone(b.headers)})
}
