package connectivity

import (
	"context"
	"net/http"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ICMPProber sends a single echo request.
type ICMPProber struct {
	Host    string
	Timeout time.Duration
	// Privileged uses raw sockets; otherwise an unprivileged UDP ping,
	// which on Linux needs net.ipv4.ping_group_range to allow the user.
	Privileged bool
}

func (p ICMPProber) Probe(ctx context.Context) bool {
	pinger, err := probing.NewPinger(p.Host)
	if err != nil {
		return false
	}
	pinger.Count = 1
	pinger.Timeout = p.Timeout
	pinger.SetPrivileged(p.Privileged)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()
	defer close(done)

	if err := pinger.Run(); err != nil {
		return false
	}
	return pinger.Statistics().PacketsRecv > 0
}

// HTTPProber issues a HEAD request and treats any response as reachable.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func NewHTTPProber(url string, timeout time.Duration) HTTPProber {
	return HTTPProber{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (p HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")

	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// NewProber picks the prober named by method ("icmp" or "http").
func NewProber(method, host, url string, timeout time.Duration) Prober {
	if method == "http" {
		return NewHTTPProber(url, timeout)
	}
	return ICMPProber{Host: host, Timeout: timeout}
}
