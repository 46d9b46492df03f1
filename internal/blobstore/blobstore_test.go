package blobstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"audioindex/internal/audio"
	"audioindex/internal/blobstore"
)

func TestKeyIsDeterministicAndSafe(t *testing.T) {
	tests := []struct {
		name     string
		entryID  string
		level    audio.Level
		id       string
		filename string
		want     string
	}{
		{"simple", "mvura", audio.LevelWord, "abc", "take1.MP3", "mvura/word/abc.mp3"},
		{"no extension", "mvura", audio.LevelExample, "abc", "recording", "mvura/example/abc"},
		{"slashes in entry", "a/b", audio.LevelMeaning, "abc", "x.wav", "a_b/meaning/abc.wav"},
		{"dot dot entry", "..", audio.LevelWord, "abc", "x.ogg", "_/word/abc.ogg"},
		{"windows path", "mvura", audio.LevelWord, "abc", `C:\tmp\clip.webm`, "mvura/word/abc.webm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := blobstore.Key(tt.entryID, tt.level, tt.id, tt.filename)
			if got != tt.want {
				t.Fatalf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalPutAndRemove(t *testing.T) {
	root := t.TempDir()
	store, err := blobstore.NewLocal(root, "/audio/")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	key := blobstore.Key("mvura", audio.LevelWord, "id-1", "clip.mp3")
	obj, err := store.Put(context.Background(), key, bytes.NewReader([]byte("payload")), "audio/mpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.URL != "/audio/mvura/word/id-1.mp3" {
		t.Fatalf("unexpected url %q", obj.URL)
	}
	if obj.Size != int64(len("payload")) {
		t.Fatalf("unexpected size %d", obj.Size)
	}
	data, err := os.ReadFile(filepath.Join(root, "mvura", "word", "id-1.mp3"))
	if err != nil || string(data) != "payload" {
		t.Fatalf("blob not written: %q, %v", data, err)
	}

	// Removing by URL resolves back to the key.
	if err := store.Remove(context.Background(), obj.URL); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "mvura")); !os.IsNotExist(err) {
		t.Fatalf("expected empty directories pruned, stat err=%v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root must survive pruning: %v", err)
	}

	// Second remove is a no-op.
	if err := store.Remove(context.Background(), key); err != nil {
		t.Fatalf("Remove of missing blob should succeed, got %v", err)
	}
}

func TestLocalPutOverwritesSameKey(t *testing.T) {
	store, err := blobstore.NewLocal(t.TempDir(), "/audio")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Put(ctx, "e/word/x.wav", strings.NewReader("first"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "e/word/x.wav", strings.NewReader("second"), ""); err != nil {
		t.Fatalf("Put retry: %v", err)
	}
	path, err := store.Path("e/word/x.wav")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Fatalf("expected retry to replace payload, got %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, err := blobstore.NewLocal(t.TempDir(), "/audio")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	_, err = store.Put(context.Background(), "../escape.mp3", strings.NewReader("x"), "")
	if !errors.Is(err, audio.ErrStorage) {
		t.Fatalf("expected storage error for traversal, got %v", err)
	}
}

type fakeS3 struct {
	s3iface.S3API
	objects   map[string][]byte
	putErr    error
	deleteErr error
	headErr   error
	lastPut   *s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, input *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.lastPut = input
	f.objects[aws.StringValue(input.Bucket)+"/"+aws.StringValue(input.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, input *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.StringValue(input.Bucket)+"/"+aws.StringValue(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucketWithContext(_ aws.Context, _ *s3.HeadBucketInput, _ ...request.Option) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestPingReportsReachability(t *testing.T) {
	ctx := context.Background()
	api := newFakeS3()
	store := blobstore.NewS3(api, blobstore.S3Options{Bucket: "dict"})
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	api.headErr = errors.New("forbidden")
	if err := store.Ping(ctx); !errors.Is(err, audio.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}

	root := filepath.Join(t.TempDir(), "blobs")
	local, err := blobstore.NewLocal(root, "/audio")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := local.Ping(ctx); err != nil {
		t.Fatalf("local Ping: %v", err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("remove root: %v", err)
	}
	if err := local.Ping(ctx); !errors.Is(err, audio.ErrStorage) {
		t.Fatalf("expected storage error after removing root, got %v", err)
	}
}

func TestS3PutUsesPrefixAndPublicURL(t *testing.T) {
	api := newFakeS3()
	store := blobstore.NewS3(api, blobstore.S3Options{
		Bucket:        "dict",
		Prefix:        "/audio/",
		PublicBaseURL: "https://cdn.example.com/",
	})

	obj, err := store.Put(context.Background(), "mvura/word/id-1.mp3", strings.NewReader("abc"), "audio/mpeg")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.URL != "https://cdn.example.com/audio/mvura/word/id-1.mp3" {
		t.Fatalf("unexpected url %q", obj.URL)
	}
	if obj.Size != 3 {
		t.Fatalf("unexpected size %d", obj.Size)
	}
	if got := string(api.objects["dict/audio/mvura/word/id-1.mp3"]); got != "abc" {
		t.Fatalf("object not uploaded under prefix, got %q", got)
	}
	if aws.StringValue(api.lastPut.ContentType) != "audio/mpeg" {
		t.Fatalf("content type not forwarded: %v", api.lastPut.ContentType)
	}

	if err := store.Remove(context.Background(), obj.URL); err != nil {
		t.Fatalf("Remove by url: %v", err)
	}
	if len(api.objects) != 0 {
		t.Fatalf("expected object deleted, have %v", api.objects)
	}
}

func TestS3ResolveURLVariants(t *testing.T) {
	pathStyle := blobstore.NewS3(newFakeS3(), blobstore.S3Options{Bucket: "dict", Endpoint: "http://minio:9000/"})
	if got := pathStyle.ResolveURL("e/word/x.mp3"); got != "http://minio:9000/dict/e/word/x.mp3" {
		t.Fatalf("path style url = %q", got)
	}

	hosted := blobstore.NewS3(newFakeS3(), blobstore.S3Options{Bucket: "dict", Region: "eu-west-1"})
	if got := hosted.ResolveURL("e/word/x y.mp3"); got != "https://dict.s3.eu-west-1.amazonaws.com/e/word/x%20y.mp3" {
		t.Fatalf("virtual hosted url = %q", got)
	}
}

func TestS3RemoveByEndpointURL(t *testing.T) {
	api := newFakeS3()
	store := blobstore.NewS3(api, blobstore.S3Options{Bucket: "dict", Prefix: "audio", Endpoint: "http://minio:9000"})
	obj, err := store.Put(context.Background(), "e/word/x.mp3", strings.NewReader("abc"), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Remove(context.Background(), obj.URL); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(api.objects) != 0 {
		t.Fatalf("expected object deleted, have %v", api.objects)
	}
}

func TestS3ErrorsCarryStorageMarker(t *testing.T) {
	api := newFakeS3()
	api.putErr = errors.New("connection reset")
	store := blobstore.NewS3(api, blobstore.S3Options{Bucket: "dict"})

	if _, err := store.Put(context.Background(), "k", strings.NewReader("x"), ""); !errors.Is(err, audio.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	api.deleteErr = awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	if err := store.Remove(context.Background(), "k"); err != nil {
		t.Fatalf("NoSuchKey should be treated as removed, got %v", err)
	}

	api.deleteErr = awserr.New("AccessDenied", "denied", nil)
	if err := store.Remove(context.Background(), "k"); !errors.Is(err, audio.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
