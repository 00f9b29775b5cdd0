package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"rack-leasing-backend/config"
	"rack-leasing-backend/internal/lifecycle"
	"rack-leasing-backend/internal/metrics"
	"rack-leasing-backend/internal/mw"
	"rack-leasing-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, lc *lifecycle.Service, cfg config.ServerConfig, webpushOptions *webpush.Options, events EventDispatcher) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), mw.RequestID())

	handler := NewHandler(s, lc, webpushOptions, events)

	rateLimiter := mw.RateLimiter(mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))

	// Reads are cached briefly; every successful write flushes the cache.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.GET("/racks", caching, handler.GetRacks)
		api.POST("/racks", handler.CreateRack)
		api.GET("/racks/:rack_id", caching, handler.GetRack)
		api.POST("/racks/:rack_id/servers", handler.AddServer)

		api.GET("/servers/:server_id", handler.GetServer)
		api.POST("/servers/:server_id/pay", handler.PayServer)
		api.POST("/servers/:server_id/refresh", handler.RefreshServer)
		api.DELETE("/servers/:server_id", handler.DeleteServer)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
