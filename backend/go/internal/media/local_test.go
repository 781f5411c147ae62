package media

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestLocalStoreSaveAndRemove(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	name := ObjectName("lecture.pdf")
	content := "fake pdf bytes"
	err = store.Save(context.Background(), name, strings.NewReader(content), int64(len(content)), "application/pdf")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(store.URI(name))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != content {
		t.Errorf("stored content = %q, want %q", data, content)
	}

	if err := store.Remove(context.Background(), name); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(store.URI(name)); !os.IsNotExist(err) {
		t.Error("expected the file to be gone after Remove")
	}

	// Removing again must be a no-op.
	if err := store.Remove(context.Background(), name); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestObjectNameKeepsExtension(t *testing.T) {
	name := ObjectName("My Notes.PDF")
	if !strings.HasSuffix(name, ".pdf") {
		t.Errorf("object name %q should end in .pdf", name)
	}
	if ObjectName("a.txt") == ObjectName("a.txt") {
		t.Error("object names must be unique per call")
	}
}
