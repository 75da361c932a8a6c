package loom

import (
	"context"
	"fmt"

	"github.com/loomdb/loom/pkg/core"
)

// UploadBlob would attach a binary blob to a node. This engine stores no
// binary payloads; the operation always fails and says so.
func (db *DB) UploadBlob(ctx context.Context, nodeID string, data []byte) error {
	return &core.StoreError{
		Op:  "blob-upload",
		Err: fmt.Errorf("binary blob storage: %w", core.ErrUnsupported),
	}
}

// IndexBlobs would build a search index over stored blobs. With no blob
// storage there is nothing to index; the operation always fails and says so.
func (db *DB) IndexBlobs(ctx context.Context) error {
	return &core.StoreError{
		Op:  "blob-index",
		Err: fmt.Errorf("blob search index construction: %w", core.ErrUnsupported),
	}
}
