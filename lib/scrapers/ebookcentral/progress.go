package ebookcentral

import "io"

// copyChunks streams src into dst in fixed-size chunks, invoking
// onProgress after each written chunk. Progress is only reported when
// the total size is known, and always on the calling goroutine.
func copyChunks(dst io.Writer, src io.Reader, chunkSize int, total int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, rerr := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				onProgress(written, total)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
