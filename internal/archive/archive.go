// Package archive abstracts blob persistence for raw source payloads and
// cover images. Extraction is not restartable, so archived pages are the only
// way to replay a pull after the fact.
package archive

import "context"

// Provider stores named blobs.
type Provider interface {
	// Put writes data under key, overwriting any previous object.
	Put(ctx context.Context, key string, data []byte) error
}

// NoOp discards every blob. Used when archiving is disabled.
type NoOp struct{}

// Put does nothing and always returns nil.
func (*NoOp) Put(_ context.Context, _ string, _ []byte) error { return nil }
