package instance

import "github.com/freshmarket/storefront-backend/pkg/env"

var idKeys = []string{"FRESHCART_INSTANCE_ID", "DYNO", "HOSTNAME"}

// GetID returns the process instance identifier or fallback when none is set.
func GetID(fallback string) string {
	for _, key := range idKeys {
		if id := env.Get(key, ""); id != "" {
			return id
		}
	}
	return fallback
}
