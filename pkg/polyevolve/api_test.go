package polyevolve

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"polyevolve/internal/config"
	"polyevolve/internal/logging"
	"polyevolve/internal/mutation"
)

func testTarget() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 15), B: 90, A: 255})
		}
	}
	return img
}

func openTestClient(t *testing.T, kind string) *Client {
	t.Helper()
	client, err := Open(context.Background(), Options{
		StoreKind:  kind,
		Logger:     logging.Discard(),
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("open client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientSaveLoadListDelete(t *testing.T) {
	for _, kind := range []string{"memory", "badger"} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			client := openTestClient(t, kind)

			s, err := client.NewSession(ctx, SessionRequest{
				Shapes:    8,
				Vertices:  5,
				Target:    testTarget(),
				Mutator:   "soft",
				Evaluator: "luma",
				Seed:      42,
			})
			if err != nil {
				t.Fatalf("new session: %v", err)
			}
			s.RecordAttempt(mutation.Translate)

			record, err := client.Save(ctx, s, SaveRequest{Name: "gradient"})
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if record.ID == "" || record.Shapes != 8 || record.Vertices != 5 || record.ImageWidth != 24 || record.MutationCounter != 1 {
				t.Fatalf("unexpected record summary: %+v", record)
			}

			loaded, err := client.Load(ctx, record.ID)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			want, _ := s.BestMatch()
			got, ok := loaded.BestMatch()
			if !ok || !want.Equal(got) {
				t.Fatal("loaded best match differs from saved session")
			}
			if loaded.Mutator().Tag() != "soft" || loaded.Evaluator().Tag() != "luma" {
				t.Fatalf("unexpected plugins: %s %s", loaded.Mutator().Tag(), loaded.Evaluator().Tag())
			}

			records, err := client.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(records) != 1 || records[0].Name != "gradient" {
				t.Fatalf("unexpected records: %+v", records)
			}

			if err := client.Delete(ctx, record.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := client.Delete(ctx, record.ID); !errors.Is(err, ErrSnapshotNotFound) {
				t.Fatalf("expected not found on second delete, got %v", err)
			}
			if _, err := client.Load(ctx, record.ID); !errors.Is(err, ErrSnapshotNotFound) {
				t.Fatalf("expected not found on load, got %v", err)
			}
		})
	}
}

func TestClientSaveOverwritesByID(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t, "memory")
	s, err := client.NewSession(ctx, SessionRequest{Shapes: 3, Vertices: 3, Target: testTarget(), Seed: 1})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	first, err := client.Save(ctx, s, SaveRequest{Name: "v1"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := client.Save(ctx, s, SaveRequest{Name: "v2", ID: first.ID})
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same id, got %s and %s", first.ID, second.ID)
	}
	records, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Name != "v2" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestClientSaveSummaryMatchesPayload(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t, "memory")
	s, err := client.NewSession(ctx, SessionRequest{Shapes: 3, Vertices: 3, Target: testTarget(), Seed: 5})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	seed, _ := s.BestMatch()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			s.RecordAttempt(mutation.ReplaceColor)
			candidate := seed.Clone()
			candidate.Divergence = seed.Divergence * (1 - float64(i)/1000)
			s.TryImprove(candidate, mutation.Mutation{Kind: mutation.ReplaceColor})
		}
	}()

	for i := 0; i < 10; i++ {
		record, err := client.Save(ctx, s, SaveRequest{Name: "live"})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
		loaded, err := client.Load(ctx, record.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		best, _ := loaded.BestMatch()
		if record.Divergence != best.Divergence ||
			record.ImprovementCounter != loaded.ImprovementCounter() ||
			record.MutationCounter != loaded.MutationCounter() {
			t.Fatalf("summary %+v disagrees with payload (divergence %v, improvements %d, mutations %d)",
				record, best.Divergence, loaded.ImprovementCounter(), loaded.MutationCounter())
		}
	}
	wg.Wait()
}

func TestClientExportSVG(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t, "memory")
	s, err := client.NewSession(ctx, SessionRequest{Shapes: 4, Vertices: 3, Target: testTarget(), Seed: 9})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	record, err := client.Save(ctx, s, SaveRequest{Name: "svg"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	var buf bytes.Buffer
	if err := client.ExportSVG(ctx, record.ID, &buf); err != nil {
		t.Fatalf("export svg: %v", err)
	}
	if got := strings.Count(buf.String(), "<polygon "); got != 4 {
		t.Fatalf("expected 4 polygons, got %d:\n%s", got, buf.String())
	}
}

func TestClientRejectsUnknownPlugin(t *testing.T) {
	client := openTestClient(t, "memory")
	_, err := client.NewSession(context.Background(), SessionRequest{Shapes: 2, Vertices: 3, Target: testTarget(), Evaluator: "ssim"})
	if err == nil {
		t.Fatal("expected unknown evaluator error")
	}
}

func TestClientSkipSeed(t *testing.T) {
	ctx := context.Background()
	client := openTestClient(t, "memory")
	s, err := client.NewSession(ctx, SessionRequest{Shapes: 2, Vertices: 3, Target: testTarget(), SkipSeed: true})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok := s.BestMatch(); ok {
		t.Fatal("expected unseeded session")
	}
	if _, err := client.Save(ctx, s, SaveRequest{Name: "empty"}); err == nil {
		t.Fatal("expected save of unseeded session to fail")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store = config.StoreConfig{Kind: "badger", Path: "/var/lib/polyevolve"}
	cfg.Metrics.Namespace = "painter"

	opts := OptionsFromConfig(cfg, nil, nil)
	if opts.StoreKind != "badger" || opts.StorePath != "/var/lib/polyevolve" || opts.MetricsNamespace != "painter" {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestOpenRejectsUnknownStore(t *testing.T) {
	if _, err := Open(context.Background(), Options{StoreKind: "redis"}); err == nil {
		t.Fatal("expected unknown store error")
	}
}
