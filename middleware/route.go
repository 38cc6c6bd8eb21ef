package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "github.com/1314wu/server-p2p-signal/middleware/security"
)

type RouteOpt struct {
	IsAuth bool
	Auth   *midsec.Options
}

// POST mounts a POST route, optionally behind the admin token middleware.
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, midsec.Middleware(opt.Auth), handler)
	} else {
		r.POST(path, handler)
	}
}

// GET mounts a GET route, optionally behind the admin token middleware.
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, midsec.Middleware(opt.Auth), handler)
	} else {
		r.GET(path, handler)
	}
}
