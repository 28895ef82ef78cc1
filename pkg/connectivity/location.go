package connectivity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const defaultLocationURL = "http://ipinfo.io/json"

// locate asks ipinfo for "city, region, country". Any failure yields "".
func locate(ctx context.Context, client *http.Client, url string) string {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.Warningf("location lookup failed: %v", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		logger.Warningf("location lookup returned %s", resp.Status)
		return ""
	}
	var body struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	if body.City == "" && body.Region == "" && body.Country == "" {
		return ""
	}
	return strings.Join([]string{body.City, body.Region, body.Country}, ", ")
}
