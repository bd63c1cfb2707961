package store

import (
	"context"
	"errors"
	"testing"

	"github.com/Camiloez/postboard/pkg/logger"
)

func TestBackendSelectsByScheme(t *testing.T) {
	cases := map[string]string{
		"mongodb://db:27017/postboard":       BackendMongo,
		"mongodb+srv://cluster.example/db":   BackendMongo,
		"postgres://u:p@db:5432/postboard":   BackendPostgres,
		"postgresql://u:p@db:5432/postboard": BackendPostgres,
		" MONGODB://db:27017 ":               BackendMongo,
	}
	for raw, want := range cases {
		got, err := Backend(raw)
		if err != nil {
			t.Fatalf("Backend(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("Backend(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestBackendRejectsUnknownScheme(t *testing.T) {
	_, err := Backend("sqlite:///tmp/db")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	st, err := Open(context.Background(), Options{URL: "memory://"}, logger.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close(context.Background())
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
