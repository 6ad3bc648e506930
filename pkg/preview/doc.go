// Package preview loads style previews with bounded concurrency.
//
// A batch is a list of WorkItems (one per style, all sharing the same preview
// text). The Loader hands the list to a Pool, which runs a fixed number of
// workers over a single atomic claim cursor. Each worker resolves its claimed
// item through the Fetcher:
//
//   - cache hit: the cached payload is returned, no remote call is made
//   - cache miss: exactly one remote call, the payload is cached on success
//
// Every item is delivered to the caller exactly once, as a success or a
// failure, in completion order. One item failing never affects the others;
// only a failure to build the batch itself (the style list could not be
// fetched) is reported as an error, wrapped in ErrBatchConstruction.
//
// Example usage:
//
//	fetcher := preview.NewFetcher(backend, previewCache)
//	loader, err := preview.NewLoader(fetcher, backend, preview.DefaultLoaderConfig())
//	items, stats, err := loader.LoadStyles(ctx, sink)
//
// No retries happen at this layer. A failed item stays failed until the batch
// is run again.
package preview
