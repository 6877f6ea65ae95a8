package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GetClientIP determines the actual client IP address considering proxies and dual stack
// Returns both IPv4 and IPv6 addresses if available
func GetClientIP(c *fiber.Ctx) (string, string) {
	ipv4 := ""
	ipv6 := ""

	// 1. Check for Cloudflare header
	cfIP := c.Get("CF-Connecting-IP")
	if cfIP != "" {
		if strings.Contains(cfIP, ":") {
			ipv6 = cfIP

			// Look for IPv4 in X-Forwarded-For header as backup
			for _, ip := range strings.Split(c.Get("X-Forwarded-For"), ",") {
				ip = strings.TrimSpace(ip)
				if ip != "" && !strings.Contains(ip, ":") {
					ipv4 = ip
					break
				}
			}
		} else {
			ipv4 = cfIP

			// Look for IPv6 in X-Forwarded-For header as backup
			for _, ip := range strings.Split(c.Get("X-Forwarded-For"), ",") {
				ip = strings.TrimSpace(ip)
				if strings.Contains(ip, ":") {
					ipv6 = ip
					break
				}
			}
		}
		return ipv4, ipv6
	}

	// 2. Check for X-Forwarded-For header (standard proxy header)
	xff := c.Get("X-Forwarded-For")
	if xff != "" {
		xffList := strings.Split(xff, ",")
		// The first entry is the original client IP
		clientIP := strings.TrimSpace(xffList[0])
		if strings.Contains(clientIP, ":") {
			ipv6 = clientIP
			for i := 1; i < len(xffList); i++ {
				ip := strings.TrimSpace(xffList[i])
				if !strings.Contains(ip, ":") {
					ipv4 = ip
					break
				}
			}
		} else {
			ipv4 = clientIP
			for i := 1; i < len(xffList); i++ {
				ip := strings.TrimSpace(xffList[i])
				if strings.Contains(ip, ":") {
					ipv6 = ip
					break
				}
			}
		}
		if ipv4 != "" || ipv6 != "" {
			return ipv4, ipv6
		}
	}

	// 3. If no proxy headers were found, use the normal IP address
	ipAddr := c.IP()

	if strings.Contains(ipAddr, ":") {
		// IPv4-mapped-IPv6 addresses (::ffff:192.168.1.1)
		if strings.Contains(ipAddr, ".") && strings.HasPrefix(ipAddr, "::ffff:") {
			ipv4 = strings.TrimPrefix(ipAddr, "::ffff:")
			if realIPv6 := c.Get("X-Real-IP"); realIPv6 != "" && strings.Contains(realIPv6, ":") {
				ipv6 = realIPv6
			}
		} else {
			ipv6 = ipAddr
			if realIPv4 := c.Get("X-Real-IP"); realIPv4 != "" && !strings.Contains(realIPv4, ":") {
				ipv4 = realIPv4
			}
		}
	} else {
		ipv4 = ipAddr
		if realIPv6 := c.Get("X-Real-IP"); realIPv6 != "" && strings.Contains(realIPv6, ":") {
			ipv6 = realIPv6
		}
	}

	return ipv4, ipv6
}

// parsePagination reads offset/limit query params with sane bounds
func parsePagination(c *fiber.Ctx, defaultLimit, maxLimit int) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}
