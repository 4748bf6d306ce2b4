// Package clusterindex publishes and resolves cluster index snapshots.
//
// A snapshot is stored as a JSON manifest in a blobstore.BlobStore. A
// VersionPointer names the manifest that is current, which allows writers to
// publish a new snapshot without readers ever observing a partial one:
//
//	name, err := clusterindex.Save(ctx, store, pointer, idx)
//
//	p := clusterindex.NewBlobProvider(store, pointer)
//	go p.Watch(ctx, time.Minute)
//	idx, err := p.Current(ctx)
package clusterindex
