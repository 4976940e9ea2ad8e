package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"activity-storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadProductImage(t *testing.T) {
	store := NewLocalStorageService(t.TempDir(), "/uploads", nil)
	svc := NewImageService(store, nil)
	ctx := context.Background()

	result, err := svc.UploadProductImage(ctx, "p1", bytes.NewReader(pngBytes(t, 1600, 1000)), "Robot Camp.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.KeyPrefix, "products/p1/robot-camp-"))
	require.Len(t, result.Variants, 2)

	display := result.Variants[0]
	assert.Equal(t, "display", display.Name)
	assert.Equal(t, 800, display.Width)
	assert.Equal(t, 500, display.Height)
	assert.Equal(t, "/uploads/"+result.KeyPrefix+"/display.jpg", result.URL("display"))

	thumb := result.Variants[1]
	assert.LessOrEqual(t, thumb.Width, 200)
	assert.LessOrEqual(t, thumb.Height, 200)

	for _, v := range result.Variants {
		exists, err := store.Exists(ctx, v.Key)
		require.NoError(t, err)
		assert.True(t, exists, v.Key)
	}

	require.NoError(t, svc.DeleteImage(ctx, result.KeyPrefix))
	exists, err := store.Exists(ctx, display.Key)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, result.URL("poster"))
}

func TestUploadProductImageSmallSource(t *testing.T) {
	svc := NewImageService(NewLocalStorageService(t.TempDir(), "/uploads", nil), nil)

	result, err := svc.UploadProductImage(context.Background(), "p1", bytes.NewReader(pngBytes(t, 120, 90)), "small.png")
	require.NoError(t, err)
	assert.Equal(t, 120, result.Variants[0].Width, "images are never enlarged")
	assert.Equal(t, 90, result.Variants[0].Height)
}

func TestUploadProductImageRejectsInvalid(t *testing.T) {
	svc := NewImageService(NewLocalStorageService(t.TempDir(), "/uploads", nil), nil)

	_, err := svc.UploadProductImage(context.Background(), "p1", strings.NewReader("not an image"), "x.png")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	big := bytes.Repeat([]byte{0}, MaxImageSize+1)
	_, err = svc.UploadProductImage(context.Background(), "p1", bytes.NewReader(big), "big.png")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestImageKeyPrefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(imageKeyPrefix("p1", ""), "products/p1/image-"))
	assert.True(t, strings.HasPrefix(imageKeyPrefix("p1", "/tmp/My Photo.JPG"), "products/p1/my-photo-"))
	assert.NotEqual(t, imageKeyPrefix("p1", "a.png"), imageKeyPrefix("p1", "a.png"))
}
