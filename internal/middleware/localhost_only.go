package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LocalhostOnly only allows loopback callers and whitelisted addresses.
type LocalhostOnly struct {
	logger   *logrus.Logger
	allowed  []net.IP
	networks []*net.IPNet
}

// NewLocalhostOnly builds the restriction from addresses and CIDR ranges.
// Unparseable entries are logged and skipped.
func NewLocalhostOnly(logger *logrus.Logger, allowedIPs []string) *LocalhostOnly {
	l := &LocalhostOnly{logger: logger}
	for _, entry := range allowedIPs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				logger.WithField("entry", entry).WithError(err).Warn("Invalid CIDR in allowed IPs")
				continue
			}
			l.networks = append(l.networks, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			logger.WithField("entry", entry).Warn("Invalid IP in allowed IPs")
			continue
		}
		l.allowed = append(l.allowed, ip)
	}
	return l
}

// Restrict rejects callers outside the whitelist with 403.
func (l *LocalhostOnly) Restrict() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if l.isAllowedIP(clientIP) {
			c.Next()
			return
		}

		// a direct local connection behind a misconfigured proxy chain
		remoteIP, _, _ := net.SplitHostPort(c.Request.RemoteAddr)
		if remoteIP != clientIP && isLocalhost(remoteIP) {
			c.Next()
			return
		}

		l.logger.WithFields(logrus.Fields{
			"client_ip": clientIP,
			"remote_ip": remoteIP,
			"path":      c.Request.URL.Path,
		}).Warn("Reject non-whitelisted access")

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "This endpoint is only accessible from allowed IP addresses",
			"code":    "IP_NOT_ALLOWED",
		})
	}
}

func isLocalhost(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip == "localhost"
	}
	return parsed.IsLoopback()
}

func (l *LocalhostOnly) isAllowedIP(ip string) bool {
	if isLocalhost(ip) {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, a := range l.allowed {
		if a.Equal(parsed) {
			return true
		}
	}
	for _, n := range l.networks {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
