package plugin

import (
	"bytes"
	"errors"
	"image"
	"math/rand"
	"testing"

	"polyevolve/internal/model"
	"polyevolve/internal/wire"
)

type constEvaluator struct {
	tag   string
	value float64
}

func (e *constEvaluator) Tag() string                    { return e.tag }
func (e *constEvaluator) MarshalBinary() ([]byte, error) { return nil, nil }
func (e *constEvaluator) UnmarshalBinary(_ []byte) error { return nil }
func (e *constEvaluator) Initialize(_ Task) error        { return nil }
func (e *constEvaluator) Divergence(_ *image.RGBA, _ model.DNA, _ Task, _ float64) float64 {
	return e.value
}

type noopInitializer struct{}

func (noopInitializer) Tag() string                               { return "noop" }
func (noopInitializer) MarshalBinary() ([]byte, error)            { return nil, nil }
func (noopInitializer) UnmarshalBinary(_ []byte) error            { return nil }
func (noopInitializer) Initialize(_ *rand.Rand, _ Task) model.DNA { return model.DNA{} }

func TestRegisterAndCreatePlugin(t *testing.T) {
	resetRegistryForTests()
	t.Cleanup(resetRegistryForTests)

	if err := Register(Spec{Tag: "const", Role: RoleEvaluator, New: func() Module {
		return &constEvaluator{tag: "const", value: 0.5}
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	e, err := NewEvaluator("const")
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	if e.Tag() != "const" {
		t.Fatalf("unexpected evaluator: %s", e.Tag())
	}
	if _, err := NewMutator("const"); !errors.Is(err, ErrPluginKind) {
		t.Fatalf("expected ErrPluginKind, got: %v", err)
	}
}

func TestRegisterPluginDuplicate(t *testing.T) {
	resetRegistryForTests()
	t.Cleanup(resetRegistryForTests)

	err := Register(Spec{Tag: TagRGB, Role: RoleEvaluator, New: func() Module { return &RGBEvaluator{} }})
	if !errors.Is(err, ErrPluginExists) {
		t.Fatalf("expected ErrPluginExists, got: %v", err)
	}
}

func TestRegisterPluginValidation(t *testing.T) {
	resetRegistryForTests()
	t.Cleanup(resetRegistryForTests)

	if err := Register(Spec{Tag: "", Role: RoleInitializer, New: func() Module { return noopInitializer{} }}); err == nil {
		t.Fatal("expected empty tag error")
	}
	if err := Register(Spec{Tag: "noop", Role: RoleInitializer}); err == nil {
		t.Fatal("expected nil factory error")
	}
	if err := Register(Spec{Tag: "other", Role: RoleInitializer, New: func() Module { return noopInitializer{} }}); err == nil {
		t.Fatal("expected tag mismatch error")
	}
	if err := Register(Spec{Tag: "noop", Role: RoleMutator, New: func() Module { return noopInitializer{} }}); !errors.Is(err, ErrPluginKind) {
		t.Fatalf("expected ErrPluginKind, got: %v", err)
	}
}

func TestNewPluginNotFound(t *testing.T) {
	if _, err := New("missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Fatalf("expected ErrPluginNotFound, got: %v", err)
	}
}

func TestListBuiltins(t *testing.T) {
	cases := map[Role][]string{
		RoleInitializer: {TagSegmented},
		RoleMutator:     {TagHard, TagSoft},
		RoleEvaluator:   {TagLuma, TagRGB},
	}
	for role, want := range cases {
		got := List(role)
		if len(got) != len(want) {
			t.Fatalf("%s: got=%v want=%v", role, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: got=%v want=%v", role, got, want)
			}
		}
	}
}

func TestWriteReadPluginRoundTrip(t *testing.T) {
	soft := NewSoftMutator()
	soft.MaxColorDelta = 40
	soft.MaxPosDelta = 3.5

	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := Write(w, soft); err != nil {
		t.Fatalf("write soft: %v", err)
	}
	if err := Write(w, &RGBEvaluator{Smooth: true}); err != nil {
		t.Fatalf("write rgb: %v", err)
	}

	r := wire.NewReader(&buf)
	m, err := ReadMutator(r)
	if err != nil {
		t.Fatalf("read mutator: %v", err)
	}
	restored, ok := m.(*SoftMutator)
	if !ok {
		t.Fatalf("unexpected mutator type %T", m)
	}
	if *restored != *soft {
		t.Fatalf("soft mutator state mismatch: got=%+v want=%+v", *restored, *soft)
	}

	e, err := ReadEvaluator(r)
	if err != nil {
		t.Fatalf("read evaluator: %v", err)
	}
	if rgb, ok := e.(*RGBEvaluator); !ok || !rgb.Smooth {
		t.Fatalf("unexpected evaluator: %#v", e)
	}
}

func TestReadPluginErrors(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	w.String("unknown-tag")
	w.Blob(nil)
	if _, err := Read(wire.NewReader(&buf)); !errors.Is(err, ErrPluginNotFound) {
		t.Fatalf("expected ErrPluginNotFound, got: %v", err)
	}

	buf.Reset()
	w = wire.NewWriter(&buf)
	if err := Write(w, &HardMutator{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadEvaluator(wire.NewReader(&buf)); !errors.Is(err, ErrPluginKind) {
		t.Fatalf("expected ErrPluginKind, got: %v", err)
	}

	buf.Reset()
	w = wire.NewWriter(&buf)
	w.String(TagRGB)
	w.Blob([]byte{1, 2})
	if _, err := Read(wire.NewReader(&buf)); !errors.Is(err, errStateLength) {
		t.Fatalf("expected state length error, got: %v", err)
	}
}
