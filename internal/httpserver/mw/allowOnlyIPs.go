package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/utils"
)

// AllowOnlyCIDRS guards mutating routes. An empty list lets everything
// through; entries that parse as neither IP nor CIDR are ignored and logged.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if bad := m.Invalid(); len(bad) > 0 {
		log.Warn("ignoring invalid allowed CIDRs", logger.Strings("entries", bad))
	}
	if m.IsEmpty() {
		log.Debug("no allowed CIDRs, mutating routes are open")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debug("CIDR guard enabled",
		logger.Int("rules", m.Len()),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := utils.ClientIP(r, trustProxy)
			if !ok || !m.Allow(addr) {
				log.Info("rejected caller outside allowed CIDRs",
					logger.String("ip", addr.String()),
					logger.String("remote_addr", r.RemoteAddr),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
