package engine

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to CDP resource types. Scripts are
// allowed on purpose: client-rendered product sections need them.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// blockedResourceTypes resolves config names, skipping unknown ones.
// It returns nil when nothing is blocked.
func blockedResourceTypes(names []string) map[proto.NetworkResourceType]struct{} {
	var blocked map[proto.NetworkResourceType]struct{}
	for _, name := range names {
		rt, ok := resourceTypes[name]
		if !ok {
			slog.Warn("rod: unknown resource type, not blocking", "type", name)
			continue
		}
		if blocked == nil {
			blocked = make(map[proto.NetworkResourceType]struct{})
		}
		blocked[rt] = struct{}{}
	}
	return blocked
}

// blockResources fails requests for the blocked resource types on page.
// The caller must Stop the returned router once the page is rendered.
// Returns nil when nothing is blocked.
func blockResources(page *rod.Page, blocked map[proto.NetworkResourceType]struct{}) *rod.HijackRouter {
	if len(blocked) == 0 {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, ok := blocked[ctx.Request.Type()]; ok {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
