package ai

import (
	"context"
	"testing"

	"minerva/pkg/errors"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewProviderRegistry()
	mock := &mockChatProvider{name: "mock", models: []ModelInfo{{Name: "alpha"}}}

	if err := registry.Register(mock); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	got, err := registry.Get("mock")
	if err != nil {
		t.Fatalf("get provider: %v", err)
	}
	if got.Name() != "mock" {
		t.Fatalf("expected provider mock, got %s", got.Name())
	}

	if _, err := registry.Get("missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown provider, got %v", err)
	}
}

func TestRegistryRejectsNilProvider(t *testing.T) {
	registry := NewProviderRegistry()

	if err := registry.Register(nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for nil provider, got %v", err)
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	registry := NewProviderRegistry()
	mock := &mockChatProvider{name: "mock"}

	if err := registry.Register(mock); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := registry.Register(mock); !errors.Is(err, errors.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on duplicate, got %v", err)
	}
}

func TestRegistryList(t *testing.T) {
	registry := NewProviderRegistry()
	for _, name := range []string{"first", "second"} {
		if err := registry.Register(&mockChatProvider{name: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	if got := len(registry.List()); got != 2 {
		t.Fatalf("expected 2 providers, got %d", got)
	}
}

func TestRegistryListModels(t *testing.T) {
	registry := NewProviderRegistry()
	if err := registry.Register(&mockChatProvider{
		name:   "mock",
		models: []ModelInfo{{Name: "alpha"}, {Name: "beta"}},
	}); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	models, err := registry.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models["mock"]) != 2 {
		t.Fatalf("expected 2 models for mock, got %d", len(models["mock"]))
	}
}

func TestRegistryListModelsPropagatesFailure(t *testing.T) {
	registry := NewProviderRegistry()
	if err := registry.Register(&mockChatProvider{
		name:    "broken",
		listErr: errors.Wrap(errors.ErrUnavailable, "upstream down"),
	}); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	if _, err := registry.ListModels(context.Background()); !errors.Is(err, errors.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from broken provider, got %v", err)
	}
}

type mockChatProvider struct {
	name    string
	models  []ModelInfo
	listErr error
}

func (m *mockChatProvider) Name() string        { return m.name }
func (m *mockChatProvider) SupportsTools() bool { return true }

func (m *mockChatProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	for _, item := range m.models {
		if item.Name == model {
			return item, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "model %s not found", model)
}

func (m *mockChatProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return m.models, m.listErr
}

func (m *mockChatProvider) Chat(_ context.Context, _ ChatRequest) (*ChatResponse, error) {
	return nil, errors.Wrap(errors.ErrNotImplemented, "mock provider has no chat")
}
