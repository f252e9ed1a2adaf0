package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blocker is the set of DevTools resource types a tab refuses to load,
// lower-cased. Blocked stylesheets never reach the mirrored document,
// which keeps _cssText out of recordings of heavy pages.
type blocker map[string]bool

func newBlocker(names []string) blocker {
	b := make(blocker, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "images", "fonts", "stylesheets":
			key = strings.TrimSuffix(key, "s")
		case "":
			continue
		}
		b[key] = true
	}
	return b
}

func (b blocker) blocks(t proto.NetworkResourceType) bool {
	return b[strings.ToLower(string(t))]
}

// install intercepts every request of page. It returns nil when nothing is
// blocked.
func (b blocker) install(page *rod.Page) *rod.HijackRouter {
	if len(b) == 0 {
		return nil
	}
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if b.blocks(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
