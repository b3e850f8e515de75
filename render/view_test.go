package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibility(t *testing.T) {
	tests := []struct {
		name                      string
		view                      View
		skeleton, content, footer bool
		open                      bool
	}{
		{"closed", Closed(), false, false, false, false},
		{"loading", Loading("/p/a"), true, false, false, true},
		{"content", Content("/p/a", "<section></section>", nil, "", false), false, true, true, true},
		{"error", Failure("/p/a", "FETCH_FAILED", Messages{}), false, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.skeleton, tt.view.ShowSkeleton, "skeleton")
			assert.Equal(t, tt.content, tt.view.ShowContent, "content")
			assert.Equal(t, tt.footer, tt.view.ShowFooter, "footer")
			assert.Equal(t, tt.open, tt.view.Open(), "open")
		})
	}
}

func TestLoading_HasEmptyContent(t *testing.T) {
	v := Loading("/p/a")
	assert.Empty(t, v.ContentHTML)
	assert.Equal(t, "/p/a", v.ProductURL)
}

func TestFailure_DefaultMessages(t *testing.T) {
	v := Failure("/p/shoe", "SECTION_NOT_FOUND", Messages{})

	assert.Equal(t, StateError, v.State)
	if assert.NotNil(t, v.Error) {
		assert.Equal(t, "SECTION_NOT_FOUND", v.Error.Code)
		assert.Equal(t, "/p/shoe", v.Error.LinkURL)
	}
	assert.Equal(t,
		`<div class="py-8 text-center"><p class="text-secondary">Failed to load product. Please try again.</p><a href="/p/shoe" class="text-primary mt-2 inline-block underline">Go to product page</a></div>`,
		v.ContentHTML)
}

func TestErrorPanel_EscapesText(t *testing.T) {
	p := &ErrorPanel{
		Message:  `<script>alert(1)</script>`,
		LinkText: `Tom & "Jerry"`,
		LinkURL:  `/p/x"onmouseover="y`,
	}
	out := p.HTML()

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Contains(t, out, "Tom &amp; &#34;Jerry&#34;")
	assert.Contains(t, out, `href="/p/x&#34;onmouseover=&#34;y"`)
}

func TestFailure_CustomMessages(t *testing.T) {
	v := Failure("/p/a", "FETCH_FAILED", Messages{ErrorMessage: "Oups", GoToProduct: "Voir le produit"})
	assert.Contains(t, v.ContentHTML, ">Oups<")
	assert.Contains(t, v.ContentHTML, ">Voir le produit<")
}
