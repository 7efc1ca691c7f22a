package config

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"port":                 3000,
			"allowed_origins":      "http://localhost:80,http://localhost:5173",
			"disable_registration": false,
		},
		"auth": map[string]interface{}{
			"jwt_secret":            "",
			"refresh_secret":        "", // derived from jwt_secret when empty
			"access_token_minutes":  15,
			"refresh_token_days":    7,
			"remember_refresh_days": 30,
			"cookie_secure":         true,
		},
		"database": map[string]interface{}{
			"path":           "./data/healthmate.db",
			"encryption_key": "",
			"run_migrations": false,
		},
		"push": map[string]interface{}{
			"subject":     "",
			"public_key":  "",
			"private_key": "",
			"ttl":         60, // seconds the push service keeps an undelivered message
			"timeout":     10, // seconds per delivery
			"icon":        "/icons/icon-192x192.png",
			"badge":       "/icons/badge-72x72.png",
			"url":         "/reminders",
		},
		"workers": map[string]interface{}{
			"enabled":           true,
			"reminder_schedule": "* * * * *",
			"cleanup_schedule":  "@daily",
		},
		"log": map[string]interface{}{
			"level":       "info",
			"development": false,
			"file":        "",
		},
	}
}
