package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"talk-chat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAvatar(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 32)...)
	gif := []byte("GIF89a....")
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}

	tests := []struct {
		name        string
		image       string
		contentType string
		ext         string
	}{
		{"png data url", "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), "image/png", ".png"},
		{"bare gif", base64.StdEncoding.EncodeToString(gif), "image/gif", ".gif"},
		{"unknown is jpeg", base64.RawStdEncoding.EncodeToString(jpeg), "image/jpeg", ".jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			u := seedUser(t, store, "alice", model.RoleMember)
			blobs := &memBlobs{}
			svc := NewUploadService(memUsers{store}, blobs)

			res, err := svc.UploadAvatar(context.Background(), u.ID, tt.image)
			require.NoError(t, err)

			require.Len(t, blobs.objects, 1)
			for key, ct := range blobs.types {
				assert.True(t, strings.HasPrefix(key, "avatars/1/"), key)
				assert.True(t, strings.HasSuffix(key, tt.ext), key)
				assert.Equal(t, tt.contentType, ct)
				assert.Equal(t, "https://cdn.test/"+key, res.URL)
			}
			require.NotNil(t, store.users[u.ID].AvatarURL)
			assert.Equal(t, res.URL, *store.users[u.ID].AvatarURL)
		})
	}
}

func TestUploadAvatar_Rejections(t *testing.T) {
	store := newMemStore()
	u := seedUser(t, store, "alice", model.RoleMember)
	blobs := &memBlobs{}
	svc := NewUploadService(memUsers{store}, blobs)
	ctx := context.Background()

	_, err := svc.UploadAvatar(ctx, u.ID, "")
	requireKind(t, err, KindValidation, "image is required")

	_, err = svc.UploadAvatar(ctx, u.ID, "data:image/png;base64,@@@not base64@@@")
	requireKind(t, err, KindValidation, "invalid base64 image")

	for _, empty := range []string{"data:image/png;base64,", ",", "data:image/png;base64,  "} {
		_, err = svc.UploadAvatar(ctx, u.ID, empty)
		requireKind(t, err, KindValidation, "invalid base64 image")
	}
	assert.Empty(t, blobs.objects)
	assert.Nil(t, store.users[u.ID].AvatarURL)

	big := base64.StdEncoding.EncodeToString(make([]byte, MaxAvatarBytes+1))
	_, err = svc.UploadAvatar(ctx, u.ID, big)
	requireKind(t, err, KindValidation, "image exceeds 5 MB")

	exact := base64.StdEncoding.EncodeToString(make([]byte, MaxAvatarBytes))
	_, err = svc.UploadAvatar(ctx, u.ID, exact)
	require.NoError(t, err)

	blobs.err = errBoom
	store.users[u.ID].AvatarURL = nil
	_, err = svc.UploadAvatar(ctx, u.ID, base64.StdEncoding.EncodeToString([]byte("GIF89a")))
	requireKind(t, err, KindUpstream, "upload failed")
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, store.users[u.ID].AvatarURL)
}
