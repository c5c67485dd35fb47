package session

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"polyevolve/internal/metrics"
	"polyevolve/internal/model"
	"polyevolve/internal/mutation"
	"polyevolve/internal/plugin"
	"polyevolve/internal/render"
	"polyevolve/internal/wire"
)

// FormatVersion is the only snapshot version Read accepts.
const FormatVersion = 1

// ImprovementScale converts cumulative divergence improvement to the
// snapshot's int32 fixed-point field; fractions below 1/ImprovementScale
// are truncated.
const ImprovementScale = 1e6

const (
	tickDuration   = 100 * time.Nanosecond
	maxStatEntries = 1 << 12
	maxBudget      = 1 << 16

	snapshotFileMode = 0o644
)

type readOptions struct {
	logger  *slog.Logger
	metrics *metrics.SessionMetrics
	clock   func() time.Time
}

type ReadOption func(*readOptions)

func WithLogger(l *slog.Logger) ReadOption {
	return func(o *readOptions) { o.logger = l }
}

func WithMetrics(m *metrics.SessionMetrics) ReadOption {
	return func(o *readOptions) { o.metrics = m }
}

func WithClock(clock func() time.Time) ReadOption {
	return func(o *readOptions) { o.clock = clock }
}

// snapshot is the state captured under the lock for one WriteTo call.
type snapshot struct {
	best               model.DNA
	improvementCounter int
	mutationCounter    int64
	elapsed            time.Duration
	initializer        plugin.Initializer
	mutator            plugin.Mutator
	evaluator          plugin.Evaluator
	stats              []mutation.Entry
}

func (s *Session) capture() (snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return snapshot{}, ErrNoTarget
	}
	if s.bestMatch == nil {
		return snapshot{}, ErrNotSeeded
	}
	return snapshot{
		best:               s.bestMatch.Clone(),
		improvementCounter: s.improvementCounter,
		mutationCounter:    s.mutationCounter,
		elapsed:            s.clock().Sub(s.taskStart),
		initializer:        s.initializer,
		mutator:            s.mutator,
		evaluator:          s.evaluator,
		stats:              s.stats.Entries(),
	}, nil
}

// Summary describes a written snapshot. Its fields come from the same
// locked capture as the snapshot payload.
type Summary struct {
	Shapes             int
	Vertices           int
	ImageWidth         int
	ImageHeight        int
	ImprovementCounter int
	MutationCounter    int64
	Divergence         float64
	Elapsed            time.Duration
}

func (s *Session) summarize(snap snapshot) Summary {
	return Summary{
		Shapes:             s.shapes,
		Vertices:           s.vertices,
		ImageWidth:         s.imageWidth,
		ImageHeight:        s.imageHeight,
		ImprovementCounter: snap.improvementCounter,
		MutationCounter:    snap.mutationCounter,
		Divergence:         snap.best.Divergence,
		Elapsed:            snap.elapsed,
	}
}

func (s *Session) targetPNG() ([]byte, error) {
	s.pngOnce.Do(func() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, s.target); err != nil {
			s.pngErr = fmt.Errorf("encode target: %w", err)
			return
		}
		s.pngBytes = buf.Bytes()
	})
	return s.pngBytes, s.pngErr
}

// WriteTo writes a version 1 snapshot of the session. The state is captured
// under the session lock; encoding happens after it is released.
func (s *Session) WriteTo(w io.Writer) (int64, error) {
	_, n, err := s.WriteSnapshot(w)
	return n, err
}

// WriteSnapshot is WriteTo that also returns the summary of what was written.
func (s *Session) WriteSnapshot(w io.Writer) (Summary, int64, error) {
	snap, err := s.capture()
	if err != nil {
		return Summary{}, 0, err
	}
	n, err := s.encode(w, snap)
	if err != nil {
		return Summary{}, n, err
	}
	return s.summarize(snap), n, nil
}

func (s *Session) encode(w io.Writer, snap snapshot) (int64, error) {
	img, err := s.targetPNG()
	if err != nil {
		return 0, err
	}

	ww := wire.NewWriter(w)
	ww.Int32(FormatVersion)
	ww.Int32(int32(s.shapes))
	ww.Int32(int32(s.vertices))
	model.EncodeDNA(ww, snap.best)
	ww.Int32(clampInt32(int64(snap.improvementCounter)))
	ww.Int32(clampInt32(snap.mutationCounter))
	ww.Int64(int64(snap.elapsed / tickDuration))
	for _, p := range []plugin.Module{snap.initializer, snap.mutator, snap.evaluator} {
		if err := plugin.Write(ww, p); err != nil {
			return ww.Written(), fmt.Errorf("write snapshot: %w", err)
		}
	}
	ww.Blob(img)
	ww.Int32(int32(len(snap.stats)))
	for _, e := range snap.stats {
		ww.String(e.Kind.String())
		ww.Int32(clampInt32(int64(e.Count)))
		ww.Int32(encodeImprovement(e.Improvement))
	}
	if err := ww.Err(); err != nil {
		return ww.Written(), fmt.Errorf("write snapshot: %w", err)
	}

	s.metrics.RecordSnapshot(ww.Written())
	s.logger.Debug("snapshot written", "session", s.id, "bytes", ww.Written())
	return ww.Written(), nil
}

// Read decodes a snapshot written by WriteTo. Statistics entries naming an
// unknown mutation kind are skipped. No session is returned on error.
func Read(r io.Reader, opts ...ReadOption) (*Session, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	rr := wire.NewReader(r)
	if version := rr.Int32(); rr.Err() != nil {
		return nil, corrupt(rr.Err())
	} else if version != FormatVersion {
		return nil, fmt.Errorf("%w: got=%d want=%d", ErrFormat, version, FormatVersion)
	}

	shapes, vertices := int(rr.Int32()), int(rr.Int32())
	if err := rr.Err(); err != nil {
		return nil, corrupt(err)
	}
	if shapes <= 0 || vertices <= 0 || shapes > maxBudget || vertices > maxBudget {
		return nil, fmt.Errorf("%w: shapes=%d vertices=%d", ErrCorrupt, shapes, vertices)
	}

	s := newSession(shapes, vertices, o.logger, o.metrics, o.clock)
	best, err := model.DecodeDNA(rr, shapes, vertices)
	if err != nil {
		return nil, corrupt(err)
	}
	s.bestMatch = &best
	s.improvementCounter = int(rr.Int32())
	s.mutationCounter = int64(rr.Int32())
	elapsed := time.Duration(rr.Int64()) * tickDuration
	if err := rr.Err(); err != nil {
		return nil, corrupt(err)
	}

	if s.initializer, err = plugin.ReadInitializer(rr); err != nil {
		return nil, corrupt(err)
	}
	if s.mutator, err = plugin.ReadMutator(rr); err != nil {
		return nil, corrupt(err)
	}
	if s.evaluator, err = plugin.ReadEvaluator(rr); err != nil {
		return nil, corrupt(err)
	}

	blob := rr.Blob()
	if err := rr.Err(); err != nil {
		return nil, corrupt(err)
	}
	img, err := png.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, corrupt(fmt.Errorf("decode target: %w", err))
	}
	s.setTarget(render.ToNRGBA(img))
	s.pngOnce.Do(func() { s.pngBytes = blob })

	if err := s.readStats(rr); err != nil {
		return nil, err
	}

	if err := s.evaluator.Initialize(s); err != nil {
		return nil, fmt.Errorf("initialize evaluator %s: %w", s.evaluator.Tag(), err)
	}

	now := s.clock()
	s.taskStart = now.Add(-elapsed)
	s.lastImprovementTime = now
	s.lastImprovementMutationCount = s.mutationCounter
	s.metrics.SetBestDivergence(best.Divergence)

	s.logger.Debug("snapshot read",
		"session", s.id,
		"shapes", shapes,
		"vertices", vertices,
		"improvements", s.improvementCounter,
		"mutations", s.mutationCounter,
	)
	return s, nil
}

func (s *Session) readStats(rr *wire.Reader) error {
	n := int(rr.Int32())
	if err := rr.Err(); err != nil {
		return corrupt(err)
	}
	if n < 0 || n > maxStatEntries {
		return fmt.Errorf("%w: stats entry count %d", ErrCorrupt, n)
	}
	for i := 0; i < n; i++ {
		name := rr.String()
		count := rr.Int32()
		improvement := rr.Int32()
		if err := rr.Err(); err != nil {
			return corrupt(err)
		}
		kind, ok := mutation.ParseKind(name)
		if !ok {
			s.logger.Warn("unknown mutation kind in snapshot stats, entry discarded",
				"name", name,
				"count", count,
			)
			s.metrics.RecordDiscardedStat()
			continue
		}
		s.stats.Set(kind, int(count), decodeImprovement(improvement))
	}
	return nil
}

// ReadFile loads a snapshot from path and remembers path as the session's
// project file.
func ReadFile(path string, opts ...ReadOption) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Read(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s.projectFile = path
	return s, nil
}

// SaveFile writes a snapshot to path through a temporary file in the same
// directory and records path as the project file.
func (s *Session) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".polyevolve-*")
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(snapshotFileMode); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	s.SetProjectFile(path)
	return nil
}

func corrupt(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %w", ErrCorrupt, err)
}

func clampInt32(v int64) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}

func encodeImprovement(v float64) int32 {
	scaled := math.Trunc(v * ImprovementScale)
	switch {
	case math.IsNaN(scaled):
		return 0
	case scaled > math.MaxInt32:
		return math.MaxInt32
	case scaled < math.MinInt32:
		return math.MinInt32
	default:
		return int32(scaled)
	}
}

func decodeImprovement(v int32) float64 {
	return float64(v) / ImprovementScale
}
