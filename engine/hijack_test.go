package engine

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestBlockedResourceTypes(t *testing.T) {
	t.Run("known names", func(t *testing.T) {
		got := blockedResourceTypes([]string{"Image", "Font", "Image"})
		assert.Len(t, got, 2)
		assert.Contains(t, got, proto.NetworkResourceTypeImage)
		assert.Contains(t, got, proto.NetworkResourceTypeFont)
	})

	t.Run("unknown names skipped", func(t *testing.T) {
		got := blockedResourceTypes([]string{"Script", "image", "Media"})
		assert.Len(t, got, 1)
		assert.Contains(t, got, proto.NetworkResourceTypeMedia)
	})

	t.Run("nothing blocked", func(t *testing.T) {
		assert.Nil(t, blockedResourceTypes(nil))
		assert.Nil(t, blockedResourceTypes([]string{"Script"}))
	})
}

func TestBlockResources_NothingBlocked(t *testing.T) {
	assert.Nil(t, blockResources(nil, nil))
}
