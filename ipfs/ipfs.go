// Package ipfs holds the pinning upload client and the gateway URL helpers
// used to render stored media.
package ipfs

import "strings"

// Gateways lists the HTTP gateways in preference order.
var Gateways = []string{
	"https://ipfs.filebase.io/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://ipfs.io/ipfs/",
}

// extractPath pulls the cid[/path] portion out of an IPFS-like URL.
func extractPath(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(trimmed, "ipfs://"); ok {
		return rest
	}
	if idx := strings.Index(trimmed, "/ipfs/"); idx != -1 {
		return trimmed[idx+len("/ipfs/"):]
	}
	return ""
}

// ResolveURL normalizes an ipfs:// or gateway URL to the preferred gateway.
// URLs without an IPFS path pass through untouched.
func ResolveURL(url string) string {
	if url == "" {
		return ""
	}
	if path := extractPath(url); path != "" {
		return Gateways[0] + path
	}
	return url
}

// GatewayFallbacks returns the same content addressed through every known
// gateway, for clients that want to retry image loads.
func GatewayFallbacks(url string) []string {
	if url == "" {
		return nil
	}
	path := extractPath(url)
	if path == "" {
		return []string{url}
	}
	out := make([]string, len(Gateways))
	for i, gw := range Gateways {
		out[i] = gw + path
	}
	return out
}
