package cache

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"cvstyle/common"
	"cvstyle/emit"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	s, err := Open(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	p := emit.Payload{
		Engine:    common.EnginePrintRaster,
		MediaType: "text/css",
		Name:      "print-raster.css",
		Data:      []byte(".section-box {\n  color: #111827;\n}\n"),
	}
	if _, ok, err := s.Get("k1", p.Engine); err != nil || ok {
		t.Fatalf("Get() on empty cache = %v, %v", ok, err)
	}
	if err := s.Put("k1", p); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put("k1", p); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	got, ok, err := s.Get("k1", p.Engine)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Name != p.Name || got.MediaType != p.MediaType || got.Engine != p.Engine || !bytes.Equal(got.Data, p.Data) {
		t.Errorf("Get() = %+v", got)
	}
	if _, ok, _ := s.Get("k1", common.EngineWordProcessing); ok {
		t.Error("engine must be part of the key")
	}
	if n, err := s.Len(); err != nil || n != 1 {
		t.Errorf("Len() = %d, %v", n, err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// survives reopening
	s, err = Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok, err := s.Get("k1", p.Engine); err != nil || !ok {
		t.Errorf("Get() after reopen = %v, %v", ok, err)
	}
}

func TestPrune(t *testing.T) {
	s, err := Open("", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if err := s.Put("old", emit.Payload{Engine: common.EngineInteractivePreview, Data: []byte("a")}); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	if err := s.Put("new", emit.Payload{Engine: common.EngineInteractivePreview, Data: []byte("b")}); err != nil {
		t.Fatal(err)
	}

	n, err := s.Prune(base.Add(24 * time.Hour))
	if err != nil || n != 1 {
		t.Errorf("Prune() = %d, %v", n, err)
	}
	if _, ok, _ := s.Get("new", common.EngineInteractivePreview); !ok {
		t.Error("fresh entry pruned")
	}
}
