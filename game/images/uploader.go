package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds simultaneous image uploads
const DefaultConcurrency = 4

// Uploader processes card images and writes them to a BlobStore
type Uploader struct {
	store       BlobStore
	concurrency int
	now         func() time.Time
	logger      *slog.Logger

	mu        sync.Mutex
	lastStamp int64
}

// NewUploader creates an uploader writing to store
func NewUploader(store BlobStore, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		store:       store,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      logger.With("component", "images"),
	}
}

// ObjectPath returns where image index of gameName is stored
func ObjectPath(gameName string, millis int64, index int) string {
	return fmt.Sprintf("images/%s/%d-%d.jpg", gameName, millis, index)
}

// stamp returns the upload time in milliseconds, bumped past the previous
// batch so two uploads for one game never share object paths
func (u *Uploader) stamp() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	millis := u.now().UnixMilli()
	if millis <= u.lastStamp {
		millis = u.lastStamp + 1
	}
	u.lastStamp = millis
	return millis
}

// UploadAll processes and uploads images concurrently and returns their URLs
// in input order. The first failure cancels the remaining uploads, removes
// the images this call already stored and is returned; progress is called
// after each finished image.
func (u *Uploader) UploadAll(ctx context.Context, gameName string, images [][]byte, progress func(done, total int)) ([]string, error) {
	urls := make([]string, len(images))
	total := len(images)
	millis := u.stamp()

	var (
		mu      sync.Mutex
		done    int
		written []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for i, data := range images {
		g.Go(func() error {
			processed, err := Process(data)
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}

			objectPath := ObjectPath(gameName, millis, i)
			url, err := u.store.Put(gctx, objectPath, processed)
			if err != nil {
				return fmt.Errorf("upload image %d: %w", i+1, err)
			}
			urls[i] = url

			mu.Lock()
			written = append(written, objectPath)
			done++
			n := done
			mu.Unlock()
			u.logger.Debug("image uploaded", "game", gameName, "index", i, "bytes", len(processed))
			if progress != nil {
				progress(n, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		u.logger.Error("image upload failed", "game", gameName, "error", err)
		if cleanupErr := u.deleteObjects(context.WithoutCancel(ctx), written); cleanupErr != nil {
			u.logger.Warn("failed to remove partial upload", "game", gameName, "error", cleanupErr)
		}
		return nil, err
	}

	u.logger.Info("images uploaded", "game", gameName, "count", total)
	return urls, nil
}

// Discard deletes images of gameName previously returned by UploadAll.
// Other uploads for the same game are left alone.
func (u *Uploader) Discard(ctx context.Context, gameName string, urls []string) error {
	prefix := "images/" + gameName + "/"
	paths := make([]string, 0, len(urls))
	for _, url := range urls {
		i := strings.LastIndex(url, prefix)
		if i < 0 {
			return fmt.Errorf("%s is not an image of %s", url, gameName)
		}
		paths = append(paths, url[i:])
	}
	return u.deleteObjects(ctx, paths)
}

func (u *Uploader) deleteObjects(ctx context.Context, paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := u.store.Delete(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
