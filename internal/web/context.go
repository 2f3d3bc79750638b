package web

import (
	"context"
	"net/http"

	"github.com/shplep/homecontentslistpro-sub000/internal/core"
	"github.com/shplep/homecontentslistpro-sub000/internal/web/middleware"
)

// WithRequestMetadata adds the client address and user agent to ctx for
// the audit log.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, middleware.ClientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
