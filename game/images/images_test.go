package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcess_ScalesToHeight(t *testing.T) {
	out, err := Process(pngBytes(t, 800, 500))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 250, img.Bounds().Dy())
	assert.Equal(t, 400, img.Bounds().Dx())
}

func TestProcess_KeepsSmallImages(t *testing.T) {
	out, err := Process(pngBytes(t, 120, 90))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 90, img.Bounds().Dy())
}

func TestProcess_Errors(t *testing.T) {
	_, err := Process(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Process([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrBadImage)
}

func TestFileBlobStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileBlobStore(root, "http://localhost:8080/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, "images/pets/1-0.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/images/pets/1-0.jpg", url)

	data, err := os.ReadFile(filepath.Join(root, "images", "pets", "1-0.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	// Traversal stays inside the root
	url, err = store.Put(ctx, "../../escape.jpg", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/escape.jpg", url)
	_, err = os.Stat(filepath.Join(root, "escape.jpg"))
	assert.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "images/pets"))
	_, err = os.Stat(filepath.Join(root, "images", "pets"))
	assert.True(t, os.IsNotExist(err))

	_, err = store.Put(ctx, "/", []byte("x"))
	assert.Error(t, err)
}

func TestUploader_UploadAll(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)
	u := NewUploader(store, nil)
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }

	images := [][]byte{pngBytes(t, 40, 40), pngBytes(t, 50, 40), pngBytes(t, 60, 40), pngBytes(t, 70, 40)}

	var (
		mu    sync.Mutex
		calls []int
	)
	urls, err := u.UploadAll(context.Background(), "pets", images, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 4, total)
		calls = append(calls, done)
	})
	require.NoError(t, err)

	require.Len(t, urls, 4)
	for i, url := range urls {
		assert.Equal(t, "http://cdn.test/"+ObjectPath("pets", 1700000000000, i), url)
	}
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, calls)
}

type failingStore struct {
	BlobStore
	failOn string
}

func (f *failingStore) Put(ctx context.Context, objectPath string, data []byte) (string, error) {
	if strings.HasSuffix(objectPath, f.failOn) {
		return "", errors.New("bucket unavailable")
	}
	return f.BlobStore.Put(ctx, objectPath, data)
}

func TestUploader_FirstFailureAborts(t *testing.T) {
	inner, err := NewFileBlobStore(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)
	u := NewUploader(&failingStore{BlobStore: inner, failOn: "-2.jpg"}, nil)

	images := [][]byte{pngBytes(t, 10, 10), pngBytes(t, 10, 10), pngBytes(t, 10, 10), pngBytes(t, 10, 10)}
	urls, err := u.UploadAll(context.Background(), "pets", images, nil)
	assert.Nil(t, urls)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload image 3")
}

func TestUploader_BadImage(t *testing.T) {
	store, err := NewFileBlobStore(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)
	u := NewUploader(store, nil)

	_, err = u.UploadAll(context.Background(), "pets", [][]byte{pngBytes(t, 10, 10), []byte("nope")}, nil)
	assert.ErrorIs(t, err, ErrBadImage)
}

func storedImages(t *testing.T, root string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, "images", "*", "*.jpg"))
	require.NoError(t, err)
	return matches
}

func TestUploader_Discard(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileBlobStore(root, "http://cdn.test")
	require.NoError(t, err)
	u := NewUploader(store, nil)
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }
	ctx := context.Background()

	images := [][]byte{pngBytes(t, 10, 10), pngBytes(t, 12, 10)}
	first, err := u.UploadAll(ctx, "pets", images, nil)
	require.NoError(t, err)
	second, err := u.UploadAll(ctx, "pets", images, nil)
	require.NoError(t, err)

	// Same clock reading, distinct objects
	assert.NotEqual(t, first[0], second[0])
	assert.Equal(t, "http://cdn.test/"+ObjectPath("pets", 1700000000001, 0), second[0])

	require.NoError(t, u.Discard(ctx, "pets", first))

	stored := storedImages(t, root)
	require.Len(t, stored, 2)
	for _, url := range second {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(url, "http://cdn.test/"))))
		assert.NoError(t, err, "the other upload must survive")
	}

	assert.Error(t, u.Discard(ctx, "pets", []string{"http://cdn.test/images/dogs/1-0.jpg"}))
	assert.Len(t, storedImages(t, root), 2)
}

func TestUploader_FailureRemovesOwnImages(t *testing.T) {
	root := t.TempDir()
	inner, err := NewFileBlobStore(root, "http://cdn.test")
	require.NoError(t, err)
	ctx := context.Background()

	earlier := NewUploader(inner, nil)
	earlier.now = func() time.Time { return time.UnixMilli(1000) }
	kept, err := earlier.UploadAll(ctx, "pets", [][]byte{pngBytes(t, 10, 10)}, nil)
	require.NoError(t, err)

	u := NewUploader(&failingStore{BlobStore: inner, failOn: "-3.jpg"}, nil)
	u.now = func() time.Time { return time.UnixMilli(2000) }
	images := [][]byte{pngBytes(t, 10, 10), pngBytes(t, 10, 10), pngBytes(t, 10, 10), pngBytes(t, 10, 10)}
	_, err = u.UploadAll(ctx, "pets", images, nil)
	require.Error(t, err)

	stored := storedImages(t, root)
	require.Len(t, stored, 1, "only the earlier upload remains")
	assert.True(t, strings.HasSuffix(kept[0], filepath.Base(stored[0])))
}
