// Package vpncheck consults an external IP reputation service to spot
// VPN/proxy exit points. The lookup is strictly best-effort: on timeout
// or error the answer is "not suspected", never a blocked request.
package vpncheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result summarizes the reputation lookup for one address.
type Result struct {
	SuspectedVPN bool   `json:"suspected_vpn"`
	Country      string `json:"country,omitempty"`
	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	ISP          string `json:"isp,omitempty"`
	Org          string `json:"org,omitempty"`
}

// Client calls an ip-api.com-compatible endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with a bounded timeout. skip disables lookups
// entirely (dev environments, private networks).
func New(baseURL string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// apiResponse mirrors the ip-api.com json payload fields we read.
type apiResponse struct {
	Status     string `json:"status"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
	ISP        string `json:"isp"`
	Org        string `json:"org"`
	Proxy      bool   `json:"proxy"`
	Hosting    bool   `json:"hosting"`
}

// Lookup classifies ip. It never returns an error; every failure mode
// degrades to an empty, unsuspected result.
func (c *Client) Lookup(ctx context.Context, ip string) Result {
	if c.Skip || ip == "" {
		return Result{}
	}

	url := fmt.Sprintf("%s/json/%s?fields=status,country,regionName,city,isp,org,proxy,hosting", c.BaseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}
	}
	if body.Status != "" && body.Status != "success" {
		return Result{}
	}

	return Result{
		SuspectedVPN: body.Proxy || body.Hosting || namesVPN(body.Org) || namesVPN(body.ISP),
		Country:      body.Country,
		Region:       body.RegionName,
		City:         body.City,
		ISP:          body.ISP,
		Org:          body.Org,
	}
}

func namesVPN(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "vpn") || strings.Contains(lower, "proxy")
}
