package installer

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

var ErrUnsupportedArchive = errors.New("unsupported archive format")

// Format is an archive container detected from file content
type Format string

const (
	FormatZip  Format = "zip"
	FormatTar  Format = "tar"
	FormatGzip Format = "gzip"
	FormatZstd Format = "zstd"
	FormatNone Format = ""
)

var formatsByMIME = map[string]Format{
	"application/zip":   FormatZip,
	"application/x-tar": FormatTar,
	"application/gzip":  FormatGzip,
	"application/zstd":  FormatZstd,
}

// Detect sniffs the archive format of path. Files that are not archives
// report FormatNone without error.
func Detect(path string) (Format, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return FormatNone, fmt.Errorf("detect %s: %w", filepath.Base(path), err)
	}
	// jar and similar subtypes inherit from zip
	for m := mime; m != nil; m = m.Parent() {
		if f, ok := formatsByMIME[m.String()]; ok {
			return f, nil
		}
	}
	return FormatNone, nil
}

// Extractor unpacks downloaded archives
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract unpacks archive into dest and returns the number of regular
// files written. Compressed tarballs are unpacked in one pass; a
// compressed single file is written without its compression suffix.
// Entries that would land outside dest are rejected.
func (e *Extractor) Extract(ctx context.Context, archive, dest string) (int, error) {
	format, err := Detect(archive)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, fmt.Errorf("failed to create destination: %w", err)
	}

	var count int
	switch format {
	case FormatZip:
		count, err = extractZip(ctx, archive, dest)
	case FormatTar:
		count, err = e.extractStream(ctx, archive, dest, nil)
	case FormatGzip:
		count, err = e.extractStream(ctx, archive, dest, func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		})
	case FormatZstd:
		count, err = e.extractStream(ctx, archive, dest, func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		})
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(archive))
	}
	if err != nil {
		return count, err
	}

	e.logger.Debug("Archive extracted",
		zap.String("archive", archive),
		zap.String("format", string(format)),
		zap.Int("files", count),
	)
	return count, nil
}

func extractZip(ctx context.Context, archive, dest string) (int, error) {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	count := 0
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		target, err := safeJoin(dest, file.Name)
		if err != nil {
			return count, err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, err
			}
			continue
		}

		src, err := file.Open()
		if err != nil {
			return count, fmt.Errorf("open %s: %w", file.Name, err)
		}
		err = writeFile(target, src, file.Mode().Perm())
		src.Close()
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// extractStream handles plain, gzip and zstd tarballs as well as single
// compressed files. decompress is nil for an uncompressed tar.
func (e *Extractor) extractStream(ctx context.Context, archive, dest string, decompress func(io.Reader) (io.ReadCloser, error)) (int, error) {
	file, err := os.Open(archive)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var stream io.Reader = file
	if decompress != nil {
		rc, err := decompress(file)
		if err != nil {
			return 0, fmt.Errorf("decompress: %w", err)
		}
		defer rc.Close()
		stream = rc
	}

	buffered := bufio.NewReaderSize(stream, 1024)
	if decompress != nil && !isTar(buffered) {
		name := strings.TrimSuffix(filepath.Base(archive), filepath.Ext(archive))
		target, err := safeJoin(dest, name)
		if err != nil {
			return 0, err
		}
		if err := writeFile(target, buffered, 0644); err != nil {
			return 0, err
		}
		return 1, nil
	}

	return extractTar(ctx, tar.NewReader(buffered), dest)
}

func extractTar(ctx context.Context, tr *tar.Reader, dest string) (int, error) {
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		header, err := tr.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("read tar: %w", err)
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return count, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil {
				return count, err
			}
			count++
		}
	}
}

// isTar peeks for the ustar magic at offset 257
func isTar(r *bufio.Reader) bool {
	head, _ := r.Peek(262)
	return len(head) == 262 && string(head[257:262]) == "ustar"
}

// safeJoin resolves name under dest, refusing absolute paths and any
// entry that climbs out with "..".
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	root := filepath.Clean(dest)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

func writeFile(path string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return out.Close()
}
