package config

import (
	"fmt"
	"net/http"

	"github.com/spf13/viper"
)

// DefaultHeaders returns the browser headers the search endpoint expects,
// minus the session cookie and CSRF token which must be supplied.
func DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", "en-IE,en;q=0.9")
	h.Set("Content-Type", "application/json")
	h.Set("Origin", "https://www.tesco.ie")
	h.Set("Referer", "https://www.tesco.ie/groceries/en-IE/search?query=wine&department=Wine&viewAll=department&page=1")
	h.Set("Sec-Ch-Ua", `"Microsoft Edge";v="135", "Not-A.Brand";v="8", "Chromium";v="135"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("X-Queueit-Ajaxpageurl", "false")
	h.Set("X-Requested-With", "XMLHttpRequest")
	return h
}

// LoadHeaders merges DefaultHeaders with an optional headers file and the
// SCRAPER_COOKIE / SCRAPER_CSRF_TOKEN environment variables, later sources
// winning. The file may be YAML, JSON or TOML:
//
//	headers:
//	  user-agent: Mozilla/5.0 ...
//	cookie: "..."
//	csrf_token: "..."
func LoadHeaders(path string) (http.Header, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	if err := v.BindEnv("cookie"); err != nil {
		return nil, fmt.Errorf("bind cookie env: %w", err)
	}
	if err := v.BindEnv("csrf_token"); err != nil {
		return nil, fmt.Errorf("bind csrf token env: %w", err)
	}

	headers := DefaultHeaders()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read headers file %q: %w", path, err)
		}
		for key, value := range v.GetStringMapString("headers") {
			headers.Set(key, value)
		}
	}

	if cookie := v.GetString("cookie"); cookie != "" {
		headers.Set("Cookie", cookie)
	}
	if token := v.GetString("csrf_token"); token != "" {
		headers.Set("X-Csrf-Token", token)
	}

	// Go's transport only decodes gzip on its own; a copied browser
	// Accept-Encoding would hand back br/zstd bodies nobody can read.
	headers.Del("Accept-Encoding")
	return headers, nil
}
