// Package source implements the Source Reader: a lazy, finite,
// non-restartable sequence of fixed-size row batches read from a delimited
// text file.
//
// A source location is a local path, a file:// URI, an http(s):// URL or an
// s3://bucket/key URI. Compression (gzip, bzip2, zstd, xz) is detected from
// the stream's magic bytes, so the same location handling applies to
// "trips.csv", "trips.csv.gz" and "trips.csv.zst" alike.
//
// Bytes are pulled from the location only while a batch is being built, so
// memory is bounded by the chunk size rather than the size of the source:
//
//	r, err := source.Open(ctx, opts)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    batch, err := r.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // write batch
//	}
package source
