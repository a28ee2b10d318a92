package ws

import (
	"net/http"
	"strings"
)

const bearerSubprotocol = "bearer"

// tokenFromRequest достаёт bearer-токен из рукопожатия: заголовок Authorization,
// пара подпротоколов "bearer, <token>" или query access_token (браузерный
// WebSocket не умеет ставить заголовки).
func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}

	protocols := websocketProtocols(r)
	for i, p := range protocols {
		if strings.EqualFold(p, bearerSubprotocol) && i+1 < len(protocols) {
			return protocols[i+1]
		}
	}

	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func websocketProtocols(r *http.Request) []string {
	var out []string
	for _, h := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(h, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
