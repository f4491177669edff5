package types

import (
	"os"
	"strings"
)

// ContextUserKey is where the auth middleware stores the authenticated user.
const ContextUserKey = "user"

// AllowedOrigins lists the origins accepted by CORS and the websocket
// upgrader: the local SPA dev servers plus anything from CLIENT_URL and
// the comma-separated ALLOWED_ORIGINS.
var AllowedOrigins = buildAllowedOrigins()

func buildAllowedOrigins() []string {
	origins := []string{
		"http://localhost:5173", // vite dev server
		"http://localhost:3000",
	}

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}

	return origins
}
