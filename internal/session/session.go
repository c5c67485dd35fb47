// Package session holds the evolution session record: the best match found
// so far, counters and statistics, the active plugins and the target image.
//
// A Session is the one synchronization point shared by concurrent workers.
// Workers mutate and score candidates without holding any lock and call
// TryImprove to publish a result; acceptance is re-checked against the live
// best match under the session's mutex.
package session

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"polyevolve/internal/metrics"
	"polyevolve/internal/model"
	"polyevolve/internal/mutation"
	"polyevolve/internal/plugin"
	"polyevolve/internal/render"
)

var (
	ErrFormat        = errors.New("unsupported snapshot format")
	ErrCorrupt       = errors.New("corrupt snapshot")
	ErrNotSeeded     = errors.New("session has no best match")
	ErrNoTarget      = errors.New("session has no target image")
	ErrInvalidConfig = errors.New("invalid session config")
	ErrAlreadySeeded = errors.New("session already seeded")
)

// Config describes a fresh session. Target may be nil; evaluators are then
// installed without preparation and the session cannot be seeded or saved.
// Nil plugins fall back to the segmented initializer, the hard mutator and
// the rgb evaluator.
type Config struct {
	Shapes   int
	Vertices int
	Target   image.Image

	Initializer plugin.Initializer
	Mutator     plugin.Mutator
	Evaluator   plugin.Evaluator

	Logger  *slog.Logger
	Metrics *metrics.SessionMetrics
	Clock   func() time.Time
}

func (c Config) validate() error {
	if c.Shapes <= 0 {
		return fmt.Errorf("%w: shapes must be positive, got %d", ErrInvalidConfig, c.Shapes)
	}
	if c.Vertices <= 0 {
		return fmt.Errorf("%w: vertices must be positive, got %d", ErrInvalidConfig, c.Vertices)
	}
	if c.Target != nil {
		b := c.Target.Bounds()
		if b.Dx() <= 0 || b.Dy() <= 0 {
			return fmt.Errorf("%w: empty target image %dx%d", ErrInvalidConfig, b.Dx(), b.Dy())
		}
	}
	return nil
}

type Session struct {
	mu sync.Mutex

	id          uuid.UUID
	shapes      int
	vertices    int
	imageWidth  int
	imageHeight int
	target      *image.NRGBA
	pngOnce     sync.Once
	pngBytes    []byte
	pngErr      error

	bestMatch *model.DNA

	improvementCounter           int
	mutationCounter              int64
	taskStart                    time.Time
	lastImprovementTime          time.Time
	lastImprovementMutationCount int64
	mutationLog                  []mutation.Mutation
	stats                        *mutation.Stats

	initializer plugin.Initializer
	mutator     plugin.Mutator
	evaluator   plugin.Evaluator

	projectFile string

	logger  *slog.Logger
	metrics *metrics.SessionMetrics
	clock   func() time.Time
}

// New builds an unseeded session with empty statistics.
func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := defaultPlugins(&cfg); err != nil {
		return nil, err
	}

	s := newSession(cfg.Shapes, cfg.Vertices, cfg.Logger, cfg.Metrics, cfg.Clock)
	if cfg.Target != nil {
		s.setTarget(render.ToNRGBA(cfg.Target))
	}
	s.initializer = cfg.Initializer
	s.mutator = cfg.Mutator
	s.evaluator = cfg.Evaluator
	if s.target != nil {
		if err := s.evaluator.Initialize(s); err != nil {
			return nil, fmt.Errorf("initialize evaluator %s: %w", s.evaluator.Tag(), err)
		}
	}
	s.taskStart = s.clock()
	s.lastImprovementTime = s.taskStart

	s.logger.Debug("session created",
		"session", s.id,
		"shapes", s.shapes,
		"vertices", s.vertices,
		"initializer", s.initializer.Tag(),
		"mutator", s.mutator.Tag(),
		"evaluator", s.evaluator.Tag(),
	)
	return s, nil
}

func newSession(shapes, vertices int, logger *slog.Logger, m *metrics.SessionMetrics, clock func() time.Time) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		id:       uuid.New(),
		shapes:   shapes,
		vertices: vertices,
		stats:    mutation.NewStats(),
		logger:   logger,
		metrics:  m,
		clock:    clock,
	}
}

func defaultPlugins(cfg *Config) error {
	if cfg.Initializer == nil {
		p, err := plugin.NewInitializer(plugin.TagSegmented)
		if err != nil {
			return err
		}
		cfg.Initializer = p
	}
	if cfg.Mutator == nil {
		p, err := plugin.NewMutator(plugin.TagHard)
		if err != nil {
			return err
		}
		cfg.Mutator = p
	}
	if cfg.Evaluator == nil {
		p, err := plugin.NewEvaluator(plugin.TagRGB)
		if err != nil {
			return err
		}
		cfg.Evaluator = p
	}
	return nil
}

func (s *Session) setTarget(img *image.NRGBA) {
	s.target = img
	s.imageWidth = img.Bounds().Dx()
	s.imageHeight = img.Bounds().Dy()
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Shapes() int { return s.shapes }

func (s *Session) Vertices() int { return s.vertices }

func (s *Session) ImageWidth() int { return s.imageWidth }

func (s *Session) ImageHeight() int { return s.imageHeight }

// Target returns the shared target image. It is never modified after the
// session is built and may be read without locking; callers must not write
// to it.
func (s *Session) Target() *image.NRGBA { return s.target }

func (s *Session) Initializer() plugin.Initializer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializer
}

func (s *Session) Mutator() plugin.Mutator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutator
}

func (s *Session) Evaluator() plugin.Evaluator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluator
}

func (s *Session) SetInitializer(p plugin.Initializer) error {
	if p == nil {
		return errors.New("initializer is required")
	}
	s.mu.Lock()
	s.initializer = p
	s.mu.Unlock()
	return nil
}

func (s *Session) SetMutator(p plugin.Mutator) error {
	if p == nil {
		return errors.New("mutator is required")
	}
	s.mu.Lock()
	s.mutator = p
	s.mu.Unlock()
	return nil
}

// SetEvaluator installs e as the active evaluator. When the session has a
// target, e is prepared against the session first; when it also has a best
// match, the best match is rescored under e before installation so later
// comparisons use one metric. The whole sequence runs under the session lock.
//
// A failed Initialize aborts the swap and keeps the previous evaluator, even
// when the session has no best match yet. Reinstalling the active evaluator
// is safe while other goroutines call Score.
func (s *Session) SetEvaluator(e plugin.Evaluator) error {
	if e == nil {
		return errors.New("evaluator is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.target == nil {
		s.evaluator = e
		return nil
	}
	if err := e.Initialize(s); err != nil {
		return fmt.Errorf("initialize evaluator %s: %w", e.Tag(), err)
	}
	if s.bestMatch == nil {
		s.evaluator = e
		return nil
	}
	canvas := render.NewCanvas(s.imageWidth, s.imageHeight)
	rescored := s.bestMatch.Clone()
	previous := rescored.Divergence
	rescored.Divergence = e.Divergence(canvas, rescored, s, 1)
	s.bestMatch = &rescored
	s.evaluator = e
	s.metrics.SetBestDivergence(rescored.Divergence)

	s.logger.Debug("evaluator swapped",
		"session", s.id,
		"evaluator", e.Tag(),
		"previous_divergence", previous,
		"divergence", rescored.Divergence,
	)
	return nil
}

// Seed builds the first genome with the active initializer, scores it with
// the active evaluator and installs it as the best match.
func (s *Session) Seed(rng *rand.Rand) (model.DNA, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.target == nil {
		return model.DNA{}, ErrNoTarget
	}
	if s.bestMatch != nil {
		return model.DNA{}, ErrAlreadySeeded
	}
	dna := s.initializer.Initialize(rng, s)
	if err := dna.Validate(s.shapes, s.vertices); err != nil {
		return model.DNA{}, fmt.Errorf("initializer %s: %w", s.initializer.Tag(), err)
	}
	dna.Divergence = s.evaluator.Divergence(render.NewCanvas(s.imageWidth, s.imageHeight), dna, s, math.MaxFloat64)
	s.bestMatch = &dna
	s.lastImprovementTime = s.clock()
	s.lastImprovementMutationCount = s.mutationCounter
	s.metrics.SetBestDivergence(dna.Divergence)
	return dna.Clone(), nil
}

// Score renders dna on canvas and scores it with the active evaluator. The
// lock is held only to read the evaluator. A nil canvas allocates one.
func (s *Session) Score(canvas *image.RGBA, dna model.DNA, limit float64) (float64, error) {
	if s.target == nil {
		return 0, ErrNoTarget
	}
	evaluator := s.Evaluator()
	if canvas == nil {
		canvas = render.NewCanvas(s.imageWidth, s.imageHeight)
	}
	return evaluator.Divergence(canvas, dna, s, limit), nil
}

// RecordAttempt counts one mutation attempt of kind and returns the new
// mutation counter.
func (s *Session) RecordAttempt(kind mutation.Kind) int64 {
	s.mu.Lock()
	s.mutationCounter++
	s.stats.RecordAttempt(kind)
	n := s.mutationCounter
	s.mu.Unlock()

	s.metrics.RecordMutation(kind.String())
	return n
}

// TryImprove replaces the best match with candidate when candidate is valid
// for the session budget and strictly better than the live best match. The
// first accepted candidate seeds the session and earns no improvement.
func (s *Session) TryImprove(candidate model.DNA, m mutation.Mutation) bool {
	if candidate.Validate(s.shapes, s.vertices) != nil {
		return false
	}
	if math.IsNaN(candidate.Divergence) {
		return false
	}

	s.mu.Lock()
	now := s.clock()
	if s.bestMatch == nil {
		seed := candidate.Clone()
		s.bestMatch = &seed
		s.lastImprovementTime = now
		s.lastImprovementMutationCount = s.mutationCounter
		s.mu.Unlock()
		s.metrics.SetBestDivergence(seed.Divergence)
		return true
	}
	if !(candidate.Divergence < s.bestMatch.Divergence) {
		s.mu.Unlock()
		return false
	}

	improvement := s.bestMatch.Divergence - candidate.Divergence
	next := candidate.Clone()
	s.bestMatch = &next
	s.improvementCounter++
	s.lastImprovementTime = now
	s.lastImprovementMutationCount = s.mutationCounter
	s.stats.RecordImprovement(m.Kind, improvement)
	m.Improvement = improvement
	if m.At.IsZero() {
		m.At = now
	}
	s.mutationLog = append(s.mutationLog, m)
	s.mu.Unlock()

	s.metrics.RecordImprovement(m.Kind.String(), next.Divergence)
	return true
}

// BestMatch returns a deep copy of the best match.
func (s *Session) BestMatch() (model.DNA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bestMatch == nil {
		return model.DNA{}, false
	}
	return s.bestMatch.Clone(), true
}

func (s *Session) ImprovementCounter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.improvementCounter
}

func (s *Session) MutationCounter() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutationCounter
}

// MutationsSinceImprovement is the number of attempts recorded since the
// best match last changed.
func (s *Session) MutationsSinceImprovement() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutationCounter - s.lastImprovementMutationCount
}

func (s *Session) LastImprovementTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastImprovementTime
}

func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock().Sub(s.taskStart)
}

// Stats returns a copy of the statistics table in kind order.
func (s *Session) Stats() []mutation.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Entries()
}

// MutationLog returns a copy of the accepted mutations in acceptance order.
func (s *Session) MutationLog() []mutation.Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mutation.Mutation(nil), s.mutationLog...)
}

func (s *Session) ProjectFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectFile
}

func (s *Session) SetProjectFile(path string) {
	s.mu.Lock()
	s.projectFile = path
	s.mu.Unlock()
}
