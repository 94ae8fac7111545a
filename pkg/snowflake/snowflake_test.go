package snowflake

import "testing"

func TestGenerateMonotonic(t *testing.T) {
	g, err := New(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var last int64
	for i := 0; i < 1000; i++ {
		id, err := g.Generate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id <= last {
			t.Fatalf("expected strictly increasing ids, got %d after %d", id, last)
		}
		last = id
	}
}

func TestNewRejectsInvalidWorkerID(t *testing.T) {
	if _, err := New(-1); err != ErrInvalidWorkerID {
		t.Fatalf("expected ErrInvalidWorkerID, got %v", err)
	}
	if _, err := New(maxWorkerID + 1); err != ErrInvalidWorkerID {
		t.Fatalf("expected ErrInvalidWorkerID, got %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	g, err := New(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := g.Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, workerID, _ := Parse(id)
	if workerID != 7 {
		t.Fatalf("expected workerID 7, got %d", workerID)
	}
}

func TestGenerateStringIsNumeric(t *testing.T) {
	g, err := New(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := g.GenerateString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == "" {
		t.Fatal("expected non-empty id string")
	}
}

func TestGlobalGeneratorRequiresInit(t *testing.T) {
	defaultGenerator = nil
	if _, err := NextID(); err == nil {
		t.Fatal("expected error before Init")
	}
	if err := Init(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NextID(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
