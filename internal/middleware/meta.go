package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "responseMeta"

type responseMeta struct {
	startedAt time.Time
	values    map[string]interface{}
}

// WithResponseMeta initialises per-request response metadata. Handlers that
// serve from cache report hits through SetCacheHit; everything else just
// inherits the processing time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := &responseMeta{startedAt: time.Now(), values: map[string]interface{}{}}
		c.Set(responseMetaKey, meta)
		c.Next()
		if _, exists := meta.values["processing_time_ms"]; !exists {
			meta.values["processing_time_ms"] = time.Since(meta.startedAt).Milliseconds()
		}
	}
}

// SetCacheHit records whether the current response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if meta := metaFromContext(c); meta != nil {
		meta.values["cache_hit"] = hit
		return
	}
	c.Set(responseMetaKey, &responseMeta{
		startedAt: time.Now(),
		values:    map[string]interface{}{"cache_hit": hit},
	})
}

// ExtractMeta returns the metadata map for the current request, or nil when
// WithResponseMeta is not installed.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if meta := metaFromContext(c); meta != nil {
		return meta.values
	}
	return nil
}

func metaFromContext(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := value.(*responseMeta)
	if !ok {
		return nil
	}
	return meta
}
