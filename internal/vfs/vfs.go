// Package vfs resolves an input or output raster path — local, or a
// remote object-store URL — to something internal/raster/gtiff's
// mmap-based driver can open as a local file. It plays the role GDAL's
// /vsis3/, /vsigs/, /vsiaz/ virtual filesystems play for remote rasters,
// narrowed to this engine's actual need: stage a remote object locally
// once, since tiled random-access reads want a local file, not a single
// streamed range per read.
package vfs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// Resolved is a path internal/raster/gtiff can open locally, plus a
// cleanup to release anything Resolve staged (a downloaded temp file). A
// local input's cleanup is a no-op.
type Resolved struct {
	LocalPath string
	cleanup   func() error
}

// Close releases any resources staged to produce LocalPath.
func (r Resolved) Close() error {
	if r.cleanup == nil {
		return nil
	}
	return r.cleanup()
}

// IsRemote reports whether path names an object in a remote store rather
// than the local filesystem, based on its URL scheme.
func IsRemote(path string) bool {
	scheme := schemeOf(path)
	return scheme != "" && scheme != "file"
}

func schemeOf(path string) string {
	u, err := url.Parse(path)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return "" // len==1 filters out Windows drive letters like "C:"
	}
	return u.Scheme
}

// Resolve stages path locally if it names a remote object, or returns it
// unchanged if it is already a local path. The gtiff driver's OpenRead
// calls Resolve for every handle it opens and the handle's Close calls
// Resolved.Close, so each open handle stages and releases its own copy.
func Resolve(ctx context.Context, path string) (Resolved, error) {
	if !IsRemote(path) {
		return Resolved{LocalPath: path}, nil
	}

	dir, key, err := splitBucketKey(path)
	if err != nil {
		return Resolved{}, fmt.Errorf("vfs: %s: %w", path, err)
	}

	bucket, err := blob.OpenBucket(ctx, dir)
	if err != nil {
		return Resolved{}, fmt.Errorf("vfs: opening bucket for %s: %w", path, err)
	}
	defer bucket.Close()

	reader, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return Resolved{}, fmt.Errorf("vfs: reading %s: %w", path, err)
	}
	defer reader.Close()

	tmp, err := os.CreateTemp("", "moamosaic-*"+filepath.Ext(key))
	if err != nil {
		return Resolved{}, fmt.Errorf("vfs: staging temp file for %s: %w", path, err)
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Resolved{}, fmt.Errorf("vfs: staging %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Resolved{}, fmt.Errorf("vfs: staging %s: %w", path, err)
	}

	localPath := tmp.Name()
	return Resolved{
		LocalPath: localPath,
		cleanup:   func() error { return os.Remove(localPath) },
	}, nil
}

// splitBucketKey splits a bucket URL like "s3://my-bucket/tiles/a.tif" into
// the bucket URL gocloud.dev/blob.OpenBucket expects ("s3://my-bucket")
// and the object key within it ("tiles/a.tif").
func splitBucketKey(path string) (bucketURL, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", err
	}
	key = strings.TrimPrefix(u.Path, "/")
	u.Path = ""
	return u.String(), key, nil
}
