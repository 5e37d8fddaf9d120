// Package hooklib is the runtime side of the Go instrumentation. Rewritten
// functions call into it at entry and, deferred, at exit:
//
//	hooklib.MemoryLogBegin("example.com/app/store.Make")
//	defer hooklib.MemoryLogEnd("example.com/app/store.Make")
//
// Measurements are reported to the attached Sink; nothing is recorded while
// no sink is attached. The sink runs outside the package lock and may call
// back into hooklib.
//
// Open samples form one process-wide stack per kind, not one per goroutine.
// Samples from goroutines running concurrently interleave: Depth then counts
// frames of other goroutines, ProfilerEnd closes whichever sample opened
// last, and Bytes covers allocations of the whole process. Measure one
// goroutine at a time for exact figures.
package hooklib

import (
	"context"
	"runtime/metrics"
	"runtime/pprof"
	"sync"
	"time"
)

type Kind int

const (
	KindMemoryLog Kind = iota
	KindProfiler
)

func (k Kind) String() string {
	if k == KindProfiler {
		return "profiler"
	}
	return "memory"
}

// Event is one finished sample.
type Event struct {
	Kind Kind
	Name string
	// Nesting level of the sample, 0 for the outermost one.
	Depth   int
	Elapsed time.Duration
	// Heap allocated between begin and end, process wide. Zero for profiler
	// samples.
	Bytes   uint64
	Objects uint64
}

type Sink interface {
	Record(e Event)
}

// FuncSink adapts a function to Sink.
type FuncSink func(e Event)

func (f FuncSink) Record(e Event) { f(e) }

type memFrame struct {
	name           string
	start          time.Time
	bytes, objects uint64
}

type profFrame struct {
	name  string
	start time.Time
	// labels in effect before the sample started
	prev context.Context
}

var (
	mu        sync.Mutex
	sink      Sink
	memStack  []memFrame
	profStack []profFrame
)

// Attach installs s and returns the previous sink. A nil s stops recording
// and drops open samples.
func Attach(s Sink) Sink {
	mu.Lock()
	defer mu.Unlock()
	prev := sink
	sink = s
	if s == nil {
		memStack = memStack[:0]
		profStack = profStack[:0]
	}
	return prev
}

const (
	allocBytesMetric   = "/gc/heap/allocs:bytes"
	allocObjectsMetric = "/gc/heap/allocs:objects"
)

func readAllocs() (bytes, objects uint64) {
	samples := []metrics.Sample{{Name: allocBytesMetric}, {Name: allocObjectsMetric}}
	metrics.Read(samples)
	if samples[0].Value.Kind() == metrics.KindUint64 {
		bytes = samples[0].Value.Uint64()
	}
	if samples[1].Value.Kind() == metrics.KindUint64 {
		objects = samples[1].Value.Uint64()
	}
	return bytes, objects
}

func MemoryLogBegin(name string) {
	mu.Lock()
	defer mu.Unlock()
	if sink == nil {
		return
	}
	b, o := readAllocs()
	memStack = append(memStack, memFrame{name: name, start: time.Now(), bytes: b, objects: o})
}

// MemoryLogEnd closes the innermost open sample called name. Samples opened
// after it and never closed are dropped.
func MemoryLogEnd(name string) {
	mu.Lock()
	s := sink
	i := len(memStack) - 1
	for i >= 0 && memStack[i].name != name {
		i--
	}
	if s == nil || i < 0 {
		mu.Unlock()
		return
	}
	f := memStack[i]
	memStack = memStack[:i]
	b, o := readAllocs()
	mu.Unlock()

	s.Record(Event{
		Kind:    KindMemoryLog,
		Name:    name,
		Depth:   i,
		Elapsed: time.Since(f.start),
		Bytes:   b - f.bytes,
		Objects: o - f.objects,
	})
}

// ProfilerBegin opens a sample and labels the calling goroutine with its
// name, so CPU profiles taken meanwhile can be filtered by sample.
func ProfilerBegin(name string) {
	mu.Lock()
	defer mu.Unlock()
	if sink == nil {
		return
	}
	prev := context.Background()
	if n := len(profStack); n > 0 {
		prev = pprof.WithLabels(context.Background(), pprof.Labels("sample", profStack[n-1].name))
	}
	profStack = append(profStack, profFrame{name: name, start: time.Now(), prev: prev})
	pprof.SetGoroutineLabels(pprof.WithLabels(context.Background(), pprof.Labels("sample", name)))
}

// ProfilerEnd closes the most recent sample. Like the Unity profiler it
// expects samples to nest.
func ProfilerEnd() {
	mu.Lock()
	s := sink
	n := len(profStack)
	if s == nil || n == 0 {
		mu.Unlock()
		return
	}
	f := profStack[n-1]
	profStack = profStack[:n-1]
	pprof.SetGoroutineLabels(f.prev)
	mu.Unlock()

	s.Record(Event{Kind: KindProfiler, Name: f.name, Depth: n - 1, Elapsed: time.Since(f.start)})
}
