package models

// OpenRequest is the payload for POST /api/v1/quickview/open.
type OpenRequest struct {
	// Slug identifies the product when URL is empty; the canonical URL
	// becomes "<product prefix><slug>".
	Slug string `json:"slug,omitempty"`

	// URL is the product detail URL. Takes precedence over Slug.
	URL string `json:"url,omitempty"`

	// PageURL is the storefront page the modal is opened from. Its "theme"
	// query parameter is propagated to upstream fetches.
	PageURL string `json:"page_url,omitempty"`

	// Format controls the content field of the response.
	// Allowed: "html" (default), "markdown".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=html markdown"`
}

// Defaults applies default values to unset fields.
func (r *OpenRequest) Defaults() {
	if r.Format == "" {
		r.Format = "html"
	}
}

// HoverRequest is the payload for POST /api/v1/prefetch/hover.
type HoverRequest struct {
	// CardID identifies the hovered product card. Required.
	CardID string `json:"card_id" binding:"required"`

	// Href is the card's product link. When empty the first a[href] in
	// CardHTML is used.
	Href string `json:"href,omitempty"`

	// CardHTML is the card's markup, used only to discover the link.
	CardHTML string `json:"card_html,omitempty"`

	PageURL string `json:"page_url,omitempty"`
}

// LeaveRequest is the payload for POST /api/v1/prefetch/leave.
type LeaveRequest struct {
	// From is the card the pointer left. Required.
	From string `json:"from" binding:"required"`

	// To is the card the pointer entered, empty when it left to a non-card.
	To string `json:"to,omitempty"`
}

// PrefetchRequest is the payload for POST /api/v1/prefetch.
type PrefetchRequest struct {
	URL     string `json:"url" binding:"required"`
	PageURL string `json:"page_url,omitempty"`
}
