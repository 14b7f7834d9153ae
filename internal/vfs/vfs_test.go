package vfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestIsRemote(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"s3://my-bucket/tiles/a.tif", true},
		{"gs://my-bucket/tiles/a.tif", true},
		{"azblob://my-container/a.tif", true},
		{"/local/path/a.tif", false},
		{"relative/path/a.tif", false},
		{`C:\Users\a.tif`, false}, // Windows drive letter, not a scheme
		{"file:///local/path/a.tif", false},
	}
	for _, tc := range tests {
		if got := IsRemote(tc.path); got != tc.want {
			t.Errorf("IsRemote(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestSchemeOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"s3://bucket/key", "s3"},
		{"/local/path", ""},
		{`D:\data\a.tif`, ""},
	}
	for _, tc := range tests {
		if got := schemeOf(tc.path); got != tc.want {
			t.Errorf("schemeOf(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestResolveLocalPathIsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.tif")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.LocalPath != path {
		t.Errorf("LocalPath = %q, want %q", r.LocalPath, path)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on local path: %v", err)
	}
}

func TestResolvedCloseNilCleanupIsNoop(t *testing.T) {
	r := Resolved{LocalPath: "/tmp/whatever"}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil cleanup: %v", err)
	}
}

func TestSplitBucketKey(t *testing.T) {
	bucketURL, key, err := splitBucketKey("s3://my-bucket/tiles/a.tif")
	if err != nil {
		t.Fatalf("splitBucketKey: %v", err)
	}
	if bucketURL != "s3://my-bucket" {
		t.Errorf("bucketURL = %q, want s3://my-bucket", bucketURL)
	}
	if key != "tiles/a.tif" {
		t.Errorf("key = %q, want tiles/a.tif", key)
	}
}
