//go:build js && wasm

package localstore

import (
	"context"
	"fmt"

	"github.com/hack-pad/hackpadfs/indexeddb"
)

// OpenIndexedDB opens a browser IndexedDB database as key storage.
func OpenIndexedDB(ctx context.Context, name string) (*FSStorage, error) {
	fsys, err := indexeddb.NewFS(ctx, name, indexeddb.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open indexeddb %s: %w", name, err)
	}
	return NewFSStorage(fsys, "rj")
}
