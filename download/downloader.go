// Package download streams single attachments to disk.
package download

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/threadgoon/threadgoon/board"
	"github.com/threadgoon/threadgoon/failure"
)

const (
	DefaultChunkSize = 8192
	DefaultFilePerm  = fs.FileMode(0o644)
)

// Streamer opens streamed GET requests. *board.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, url string) (*board.Stream, error)
}

// ProgressFunc receives the running byte count after every chunk.
// expected is 0 when the server did not declare a length.
type ProgressFunc func(written, expected int64)

// Options configures a Downloader
type Options struct {
	ChunkSize int
	FilePerm  fs.FileMode
}

// Downloader writes remote resources to local files, never overwriting
// an existing file and never leaving a partial one behind.
type Downloader struct {
	streamer Streamer
	opts     Options
	logger   zerolog.Logger
}

// New creates a Downloader
func New(streamer Streamer, opts Options, logger zerolog.Logger) *Downloader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.FilePerm == 0 {
		opts.FilePerm = DefaultFilePerm
	}

	return &Downloader{
		streamer: streamer,
		opts:     opts,
		logger:   logger,
	}
}

// Download fetches url into path. It always returns exactly one Outcome.
func (d *Downloader) Download(ctx context.Context, url, path string, progress ProgressFunc) Outcome {
	log := d.logger.With().Str("url", url).Str("path", path).Logger()

	if _, err := os.Lstat(path); err == nil {
		log.Debug().Msg("Target exists, skipping")
		return skipped(path)
	}

	if err := ctx.Err(); err != nil {
		return failed(path, 0, 0, &failure.Error{Kind: failure.KindOf(err), Op: "download", URL: url, Err: err})
	}

	stream, err := d.streamer.Stream(ctx, url)
	if err != nil {
		fe := failure.As(err)
		log.Warn().Err(err).Str("kind", fe.Kind.String()).Msg("Request failed")
		return failed(path, 0, 0, fe)
	}
	defer stream.Body.Close()

	expected := stream.ContentLength

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, d.opts.FilePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			log.Debug().Msg("Target created concurrently, skipping")
			return skipped(path)
		}
		fe := failure.FromFS("create", path, err)
		log.Warn().Err(err).Str("kind", fe.Kind.String()).Msg("Failed to create file")
		return failed(path, 0, expected, fe)
	}

	written, err := d.copy(file, stream.Body, expected, progress)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = failure.FromFS("close", path, closeErr)
	}

	if err != nil {
		fe := failure.As(err)
		if fe.URL == "" && fe.Path == "" {
			fe.URL = url
		}
		d.removePartial(log, path)
		log.Warn().
			Err(err).
			Str("kind", fe.Kind.String()).
			Int64("written", written).
			Int64("expected", expected).
			Msg("Download failed")
		return failed(path, written, expected, fe)
	}

	log.Debug().Int64("bytes", written).Msg("Download complete")
	return downloaded(path, written, expected)
}

// copy streams src to dst in chunk-sized pieces. Write errors are
// filesystem failures; read errors already carry their network kind.
func (d *Downloader) copy(dst *os.File, src io.Reader, expected int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, d.opts.ChunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, failure.FromFS("write", dst.Name(), err)
			}
			written += int64(n)
			if progress != nil {
				progress(written, expected)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}

func (d *Downloader) removePartial(log zerolog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error().Err(err).Msg("Failed to remove partial file")
	}
}
