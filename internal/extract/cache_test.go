package extract

import "testing"

func TestObjectCacheRoundTrip(t *testing.T) {
	c := newObjectCache(8)
	if _, ok := c.get(0x1000); ok {
		t.Fatal("expected a miss on an empty cache")
	}
	c.put(0x1000, []byte("hello"))
	got, ok := c.get(0x1000)
	if !ok || string(got) != "hello" {
		t.Fatalf("get(0x1000) = %q, %v; want \"hello\", true", got, ok)
	}
	if _, ok := c.get(0x2000); ok {
		t.Fatal("expected a miss for a different key")
	}
}

func TestPersistentCacheMemFallback(t *testing.T) {
	pc, err := OpenPersistentCache("")
	if err != nil {
		t.Fatalf("OpenPersistentCache: %v", err)
	}
	defer pc.Close()

	if _, ok := pc.Get(0x1000, "FTPR", "mod1"); ok {
		t.Fatal("expected a miss on an empty store")
	}
	if err := pc.Put(0x1000, "FTPR", "mod1", []byte("decoded bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := pc.Get(0x1000, "FTPR", "mod1")
	if !ok || string(got) != "decoded bytes" {
		t.Fatalf("Get = %q, %v; want \"decoded bytes\", true", got, ok)
	}
}

func TestPersistentCacheNilIsNoop(t *testing.T) {
	var pc *PersistentCache
	if _, ok := pc.Get(0, "x", "y"); ok {
		t.Fatal("nil cache should always miss")
	}
	if err := pc.Put(0, "x", "y", nil); err != nil {
		t.Fatalf("Put on nil cache should be a no-op, got %v", err)
	}
	if err := pc.Close(); err != nil {
		t.Fatalf("Close on nil cache should be a no-op, got %v", err)
	}
}
