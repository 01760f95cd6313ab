package distgraph

import (
	"context"
	"io"

	"github.com/hypergraphs/knng/blobstore"
	"github.com/hypergraphs/knng/pcoll"
	"github.com/hypergraphs/knng/persistence"
)

// SaveToStore writes an edge-table snapshot as a named blob.
func SaveToStore[T any](ctx context.Context, edge *pcoll.Collection[Tuple[T]], store blobstore.Store, name string, compression persistence.Compression) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(Save(ctx, edge, pw, compression))
	}()
	return store.Put(ctx, name, pr)
}

// LoadFromStore reads a snapshot blob written by SaveToStore.
func LoadFromStore[T any](ctx context.Context, pctx *pcoll.Context, store blobstore.Store, name string) (*pcoll.Collection[Tuple[T]], error) {
	r, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Load[T](pctx, r)
}
