package main

import (
	"path/filepath"
	"testing"

	"lendingcore/services/lendingd/config"
	"lendingcore/storage"
)

func TestOpenStorageBackends(t *testing.T) {
	mem, err := openStorage(config.StorageConfig{Backend: config.BackendMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := mem.(*storage.MemDB); !ok {
		t.Fatalf("expected MemDB, got %T", mem)
	}

	bolt, err := openStorage(config.StorageConfig{Backend: config.BackendBolt, Path: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("bolt: %v", err)
	}
	defer bolt.Close()
	if err := bolt.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("bolt put: %v", err)
	}

	level, err := openStorage(config.StorageConfig{Backend: config.BackendLevelDB, Path: filepath.Join(t.TempDir(), "ledger")})
	if err != nil {
		t.Fatalf("leveldb: %v", err)
	}
	level.Close()
}

func TestLoadServerTLS(t *testing.T) {
	cfg, err := loadServerTLS(config.TLSConfig{AllowInsecure: true})
	if err != nil || cfg != nil {
		t.Fatalf("expected plaintext, got %v (%v)", cfg, err)
	}
	if _, err := loadServerTLS(config.TLSConfig{}); err == nil {
		t.Fatalf("expected missing credentials to fail")
	}
	if _, err := loadServerTLS(config.TLSConfig{CertPath: "missing.crt", KeyPath: "missing.key"}); err == nil {
		t.Fatalf("expected unreadable keypair to fail")
	}
}
