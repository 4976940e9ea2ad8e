package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"activity-storefront/internal/models"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImageSize is the largest upload accepted for product images
const MaxImageSize = 10 << 20

// ImageVariantConfig is one stored size of a product image
type ImageVariantConfig struct {
	Name   string
	Width  int
	Height int
}

// ProductImageVariants are the sizes stored for every product image. The
// first entry is the display image.
var ProductImageVariants = []ImageVariantConfig{
	{Name: "display", Width: 800, Height: 800},
	{Name: "thumbnail", Width: 200, Height: 200},
}

// ImageVariant is an uploaded image size
type ImageVariant struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Key    string `json:"key"`
	URL    string `json:"url"`
}

// ImageUploadResult lists the variants stored for one upload
type ImageUploadResult struct {
	KeyPrefix string         `json:"key_prefix"`
	Variants  []ImageVariant `json:"variants"`
}

// URL returns the address of the named variant.
func (r *ImageUploadResult) URL(name string) string {
	for _, v := range r.Variants {
		if v.Name == name {
			return v.URL
		}
	}
	return ""
}

// ImageService resizes product images and stores them
type ImageService struct {
	storage StorageService
	quality int
	logger  *zap.Logger
}

// NewImageService creates a new image service
func NewImageService(storage StorageService, logger *zap.Logger) *ImageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageService{storage: storage, quality: 85, logger: logger}
}

// UploadProductImage decodes data, stores a JPEG per ProductImageVariants size
// and returns their URLs.
func (s *ImageService) UploadProductImage(ctx context.Context, productID string, reader io.Reader, filename string) (*ImageUploadResult, error) {
	data, err := io.ReadAll(io.LimitReader(reader, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", models.ErrInvalidInput, MaxImageSize)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", models.ErrInvalidInput, err)
	}
	if !isValidImageFormat(format) {
		return nil, fmt.Errorf("%w: unsupported image format %s", models.ErrInvalidInput, format)
	}

	result := &ImageUploadResult{KeyPrefix: imageKeyPrefix(productID, filename)}
	for _, cfg := range ProductImageVariants {
		variant, err := s.storeVariant(ctx, img, result.KeyPrefix, cfg)
		if err != nil {
			return nil, err
		}
		result.Variants = append(result.Variants, *variant)
	}

	s.logger.Info("Stored product image",
		zap.String("product_id", productID),
		zap.String("key_prefix", result.KeyPrefix),
		zap.String("format", format))
	return result, nil
}

func (s *ImageService) storeVariant(ctx context.Context, img image.Image, keyPrefix string, cfg ImageVariantConfig) (*ImageVariant, error) {
	resized := imaging.Fit(img, cfg.Width, cfg.Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode %s image: %w", cfg.Name, err)
	}

	key := fmt.Sprintf("%s/%s.jpg", keyPrefix, cfg.Name)
	url, err := s.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), "image/jpeg", int64(buf.Len()))
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s image: %w", cfg.Name, err)
	}

	bounds := resized.Bounds()
	return &ImageVariant{
		Name:   cfg.Name,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Key:    key,
		URL:    url,
	}, nil
}

// DeleteImage removes every variant stored under keyPrefix
func (s *ImageService) DeleteImage(ctx context.Context, keyPrefix string) error {
	for _, cfg := range ProductImageVariants {
		key := fmt.Sprintf("%s/%s.jpg", keyPrefix, cfg.Name)
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to delete image variant", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func imageKeyPrefix(productID, filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	if base == "" || base == "." {
		base = "image"
	}
	return fmt.Sprintf("products/%s/%s-%s", productID, base, uuid.NewString()[:8])
}

func isValidImageFormat(format string) bool {
	switch format {
	case "jpeg", "png", "gif":
		return true
	default:
		return false
	}
}
