package colidx

import (
	"os"
	"testing"
)

func TestOpenScratchCreatesAndCloses(t *testing.T) {
	dir := t.TempDir()
	sc, err := openScratch(dir)
	if err != nil {
		t.Fatalf("openScratch: %v", err)
	}
	if _, err := os.Stat(sc.path); err != nil {
		t.Fatalf("expected scratch file to exist: %v", err)
	}
	if err := sc.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(sc.path); !os.IsNotExist(err) {
		t.Fatal("expected scratch file to be removed after close")
	}
	// Closing again must be a safe no-op.
	if err := sc.close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestOpenScratchFailsOnBadDir(t *testing.T) {
	if _, err := openScratch(string([]byte{0})); err == nil {
		t.Fatal("expected an invalid directory to fail")
	}
}
