package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"
)

// B2Store keeps blobs as objects in a Backblaze B2 bucket, one object per
// blob path name. Writers become visible on Close, which fits the upload
// pipeline's one-writer-per-session model.
type B2Store struct {
	client *b2.Client
	bucket *b2.Bucket
	prefix string
}

func NewB2Store(ctx context.Context, keyID, applicationKey, bucketName, prefix string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("create B2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", bucketName, err)
	}
	return &B2Store{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *B2Store) object(name string) *b2.Object {
	return s.bucket.Object(s.prefix + name)
}

func (s *B2Store) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return s.object(name).NewWriter(ctx), nil
}

func (s *B2Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj := s.object(name)
	if _, err := obj.Attrs(ctx); b2.IsNotExist(err) {
		return nil, ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("stat B2 object %s: %w", name, err)
	}
	return obj.NewReader(ctx), nil
}

func (s *B2Store) Copy(ctx context.Context, src, dst string) error {
	in, err := s.Open(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()
	out := s.object(dst).NewWriter(ctx)
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy B2 object %s -> %s: %w", src, dst, err)
	}
	return out.Close()
}

// Rename is copy-then-delete; B2 has no rename primitive.
func (s *B2Store) Rename(ctx context.Context, src, dst string) error {
	if err := s.Copy(ctx, src, dst); err != nil {
		return err
	}
	return s.Delete(ctx, src)
}

func (s *B2Store) Delete(ctx context.Context, name string) error {
	if err := s.object(name).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return fmt.Errorf("delete B2 object %s: %w", name, err)
	}
	return nil
}

func (s *B2Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.object(name).Attrs(ctx)
	if b2.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("stat B2 object %s: %w", name, err)
	}
	return true, nil
}
