package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/adwire/conveyor/id"
	"github.com/adwire/conveyor/storage"
	"github.com/adwire/conveyor/workitem"
)

type fakeRemover struct {
	removed []string
	fail    map[string]error
}

func (f *fakeRemover) Remove(_ context.Context, path string) error {
	if err, ok := f.fail[path]; ok {
		return err
	}
	f.removed = append(f.removed, path)
	return nil
}

func file(path string) workitem.FileItem {
	return workitem.FileItem{ID: id.NewFileID(), Path: path, Size: 1}
}

func TestCleanRespectsFolderAllowList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		folders     []string
		files       []workitem.FileItem
		wantRemoved []string
	}{
		{
			name:        "inside allowed folder",
			folders:     []string{"inbound"},
			files:       []workitem.FileItem{file("inbound/acme/r_1.csv")},
			wantRemoved: []string{"inbound/acme/r_1.csv"},
		},
		{
			name:    "outside allowed folder",
			folders: []string{"inbound"},
			files:   []workitem.FileItem{file("exports/acme/r_1.csv")},
		},
		{
			name:    "prefix is not a folder match",
			folders: []string{"inbound"},
			files:   []workitem.FileItem{file("inbound-archive/r_1.csv")},
		},
		{
			name:    "mixed paths",
			folders: []string{"inbound", "staging/"},
			files: []workitem.FileItem{
				file("inbound/a.csv"),
				file("staging/b.csv"),
				file("warehouse/c.csv"),
			},
			wantRemoved: []string{"inbound/a.csv", "staging/b.csv"},
		},
		{
			name:  "no folders configured removes nothing",
			files: []workitem.FileItem{file("inbound/a.csv")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rm := &fakeRemover{}
			c := storage.NewCleaner(rm, tt.folders)

			removed, err := c.Clean(context.Background(), tt.files)
			if err != nil {
				t.Fatalf("Clean: %v", err)
			}
			if removed != len(tt.wantRemoved) {
				t.Fatalf("removed = %d, want %d", removed, len(tt.wantRemoved))
			}
			if len(rm.removed) != len(tt.wantRemoved) {
				t.Fatalf("remover calls = %v, want %v", rm.removed, tt.wantRemoved)
			}
			for i, want := range tt.wantRemoved {
				if rm.removed[i] != want {
					t.Fatalf("removed[%d] = %q, want %q", i, rm.removed[i], want)
				}
			}
		})
	}
}

func TestCleanContinuesPastFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend unavailable")
	rm := &fakeRemover{fail: map[string]error{"inbound/bad.csv": boom}}
	c := storage.NewCleaner(rm, []string{"inbound"})

	removed, err := c.Clean(context.Background(), []workitem.FileItem{
		file("inbound/bad.csv"),
		file("inbound/good.csv"),
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped removal error, got %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if len(rm.removed) != 1 || rm.removed[0] != "inbound/good.csv" {
		t.Fatalf("remover calls = %v", rm.removed)
	}
}
