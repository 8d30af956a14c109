package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestArchive_RoundTrip(t *testing.T) {
	fake := newFakeS3()
	a := NewArchive(fake, "papers")
	ctx := context.Background()

	if err := a.Put(ctx, "papers/p1/study.pdf", []byte("%PDF"), ""); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if fake.types["papers/p1/study.pdf"] != "application/octet-stream" {
		t.Fatalf("expected default content type, got %q", fake.types["papers/p1/study.pdf"])
	}

	data, err := a.Get(ctx, "papers/p1/study.pdf")
	if err != nil || string(data) != "%PDF" {
		t.Fatalf("expected stored bytes, got %q %v", data, err)
	}

	if err := a.Delete(ctx, "papers/p1/study.pdf"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if _, err := a.Get(ctx, "papers/p1/study.pdf"); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestArchive_DownloadLinkNeedsClient(t *testing.T) {
	a := NewArchive(newFakeS3(), "papers")
	if _, err := a.DownloadLink(context.Background(), "k"); err == nil {
		t.Fatal("expected error without s3 client")
	}
}

func TestNewArchiveFromEnv_Disabled(t *testing.T) {
	t.Setenv("AWS_BUCKET", "")
	a, err := NewArchiveFromEnv(context.Background())
	if err != nil || a != nil {
		t.Fatalf("expected nil archive, got %v %v", a, err)
	}
}
