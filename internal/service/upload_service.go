package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"talk-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxAvatarBytes caps the decoded image size.
const MaxAvatarBytes = 5 * 1024 * 1024

// UploadResult carries the public URL of a stored avatar.
type UploadResult struct {
	URL string `json:"url"`
}

// UploadService stores avatar images in blob storage.
type UploadService struct {
	users UserStore
	blobs BlobStore
}

// NewUploadService returns an UploadService backed by blobs.
func NewUploadService(users UserStore, blobs BlobStore) *UploadService {
	return &UploadService{users: users, blobs: blobs}
}

// UploadAvatar decodes a base64 image (a data URL prefix is allowed), stores
// it under avatars/<user id>/ and points the user's avatar at it.
func (s *UploadService) UploadAvatar(ctx context.Context, userID uint, image string) (*UploadResult, error) {
	if strings.TrimSpace(image) == "" {
		return nil, validation("image is required")
	}
	if i := strings.IndexByte(image, ','); i >= 0 {
		image = image[i+1:]
	}

	data, err := decodeBase64(strings.TrimSpace(image))
	if err != nil || len(data) == 0 {
		return nil, validation("invalid base64 image")
	}
	if len(data) > MaxAvatarBytes {
		return nil, validation("image exceeds 5 MB")
	}

	contentType, ext := sniffImage(data)
	key := fmt.Sprintf("avatars/%d/%s.%s", userID, uuid.NewString(), ext)

	if err := s.blobs.Put(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, upstream("upload failed", err)
	}

	url := s.blobs.PublicURL(key)
	if err := s.users.UpdateAvatar(ctx, userID, url); err != nil {
		return nil, upstream("upload failed", err)
	}

	logger.Info("avatar uploaded", zap.Uint("user_id", userID), zap.String("key", key), zap.Int("bytes", len(data)))
	return &UploadResult{URL: url}, nil
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// sniffImage recognises PNG and GIF by magic bytes and calls anything else
// JPEG.
func sniffImage(data []byte) (contentType, ext string) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "image/png", "png"
	case bytes.HasPrefix(data, []byte("GIF")):
		return "image/gif", "gif"
	default:
		return "image/jpeg", "jpeg"
	}
}
