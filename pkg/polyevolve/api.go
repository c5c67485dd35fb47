// Package polyevolve is the public entry point for creating evolution
// sessions and keeping their snapshots in a store.
package polyevolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"polyevolve/internal/config"
	"polyevolve/internal/metrics"
	"polyevolve/internal/model"
	"polyevolve/internal/plugin"
	"polyevolve/internal/session"
	"polyevolve/internal/storage"
)

const defaultDBPath = "polyevolve.db"

var ErrSnapshotNotFound = errors.New("snapshot not found")

type Options struct {
	StoreKind string
	StorePath string

	Logger *slog.Logger
	// Registerer receives session metrics; nil disables them.
	Registerer       prometheus.Registerer
	MetricsNamespace string
	Clock            func() time.Time
}

// OptionsFromConfig maps loaded settings onto client options.
func OptionsFromConfig(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) Options {
	return Options{
		StoreKind:        cfg.Store.Kind,
		StorePath:        cfg.Store.Path,
		Logger:           logger,
		Registerer:       reg,
		MetricsNamespace: cfg.Metrics.Namespace,
	}
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.SessionMetrics
	clock   func() time.Time
}

type SessionRequest struct {
	Shapes   int
	Vertices int
	Target   image.Image

	// Plugin tags; empty selects the session defaults.
	Initializer string
	Mutator     string
	Evaluator   string

	// Seed is the random seed for the initial genome; zero uses the clock.
	Seed int64
	// SkipSeed leaves the session without a best match.
	SkipSeed bool
}

type SaveRequest struct {
	Name string
	// ID overwrites an existing snapshot when set.
	ID string
}

// Open creates the configured store and initializes it.
func Open(ctx context.Context, opts Options) (*Client, error) {
	kind := opts.StoreKind
	if kind == "" {
		kind = storage.DefaultStoreKind()
	}
	path := opts.StorePath
	if path == "" && kind == "sqlite" {
		path = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	var m *metrics.SessionMetrics
	if opts.Registerer != nil {
		var err error
		m, err = metrics.NewSessionMetrics(opts.Registerer, opts.MetricsNamespace)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	store, err := storage.NewStore(kind, path, storage.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, fmt.Errorf("init %s store: %w", kind, err)
	}

	return &Client{
		store:   store,
		logger:  logger,
		metrics: m,
		clock:   clock,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// NewSession builds a session for req and, unless SkipSeed is set, seeds
// its best match.
func (c *Client) NewSession(_ context.Context, req SessionRequest) (*session.Session, error) {
	cfg := session.Config{
		Shapes:   req.Shapes,
		Vertices: req.Vertices,
		Target:   req.Target,
		Logger:   c.logger,
		Metrics:  c.metrics,
		Clock:    c.clock,
	}
	var err error
	if req.Initializer != "" {
		if cfg.Initializer, err = plugin.NewInitializer(req.Initializer); err != nil {
			return nil, err
		}
	}
	if req.Mutator != "" {
		if cfg.Mutator, err = plugin.NewMutator(req.Mutator); err != nil {
			return nil, err
		}
	}
	if req.Evaluator != "" {
		if cfg.Evaluator, err = plugin.NewEvaluator(req.Evaluator); err != nil {
			return nil, err
		}
	}

	s, err := session.New(cfg)
	if err != nil {
		return nil, err
	}
	if req.SkipSeed {
		return s, nil
	}
	seed := req.Seed
	if seed == 0 {
		seed = c.clock().UnixNano()
	}
	if _, err := s.Seed(rand.New(rand.NewSource(seed))); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes a snapshot of s to the store and returns its summary.
func (c *Client) Save(ctx context.Context, s *session.Session, req SaveRequest) (model.SnapshotRecord, error) {
	var buf bytes.Buffer
	summary, _, err := s.WriteSnapshot(&buf)
	if err != nil {
		return model.SnapshotRecord{}, err
	}

	record := storage.NewSnapshotRecord(req.Name, buf.Bytes(), c.clock())
	if req.ID != "" {
		record.ID = req.ID
	}
	record.Shapes = summary.Shapes
	record.Vertices = summary.Vertices
	record.ImageWidth = summary.ImageWidth
	record.ImageHeight = summary.ImageHeight
	record.ImprovementCounter = summary.ImprovementCounter
	record.MutationCounter = summary.MutationCounter
	record.Divergence = summary.Divergence
	record.ElapsedMS = summary.Elapsed.Milliseconds()

	if err := c.store.SaveSnapshot(ctx, record); err != nil {
		return model.SnapshotRecord{}, fmt.Errorf("save snapshot %s: %w", record.ID, err)
	}
	c.logger.Info("snapshot saved", "id", record.ID, "name", record.Name, "bytes", len(record.Payload))
	record.Payload = nil
	return record, nil
}

// Load restores the session stored under id.
func (c *Client) Load(ctx context.Context, id string) (*session.Session, error) {
	record, ok, err := c.store.GetSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	s, err := session.Read(bytes.NewReader(record.Payload),
		session.WithLogger(c.logger),
		session.WithMetrics(c.metrics),
		session.WithClock(c.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return s, nil
}

func (c *Client) List(ctx context.Context) ([]model.SnapshotRecord, error) {
	return c.store.ListSnapshots(ctx)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	ok, err := c.store.DeleteSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return nil
}

// ExportSVG writes the best match of the stored snapshot id as SVG.
func (c *Client) ExportSVG(ctx context.Context, id string, w io.Writer) error {
	s, err := c.Load(ctx, id)
	if err != nil {
		return err
	}
	return s.WriteSVG(w)
}
