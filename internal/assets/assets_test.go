package assets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	puts []*s3.PutObjectInput
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, input)
	return &s3.PutObjectOutput{}, nil
}

func testStore(fake *fakeS3) *Store {
	return &Store{
		cfg: Config{
			Endpoint:  "https://s3.example.com",
			PublicURL: "https://media.example.com",
			Bucket:    "seendrop-media",
		},
		client: fake,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{}
	obj, err := testStore(fake).Upload(context.Background(), "events/42", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(fake.puts))
	}
	put := fake.puts[0]
	if *put.Bucket != "seendrop-media" {
		t.Errorf("bucket = %q", *put.Bucket)
	}
	if !strings.HasPrefix(*put.Key, "events/42/") || !strings.HasSuffix(*put.Key, ".png") {
		t.Errorf("key = %q", *put.Key)
	}
	if *put.ContentType != "image/png" {
		t.Errorf("content type = %q", *put.ContentType)
	}
	if *put.ContentLength != int64(len("png-bytes")) {
		t.Errorf("content length = %d", *put.ContentLength)
	}
	want := "https://media.example.com/seendrop-media/" + obj.Key
	if obj.PublicURL != want {
		t.Errorf("PublicURL = %q, want %q", obj.PublicURL, want)
	}
}

func TestUploadUniqueKeys(t *testing.T) {
	fake := &fakeS3{}
	store := testStore(fake)
	a, err := store.Upload(context.Background(), "events/1", []byte("x"), "video/mp4")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	b, err := store.Upload(context.Background(), "events/1", []byte("x"), "video/mp4")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if a.Key == b.Key {
		t.Errorf("keys collide: %q", a.Key)
	}
}

func TestUploadError(t *testing.T) {
	fake := &fakeS3{err: errors.New("access denied")}
	_, err := testStore(fake).Upload(context.Background(), "events/1", []byte("x"), "image/png")
	if err == nil {
		t.Fatal("Upload succeeded, want error")
	}
}
