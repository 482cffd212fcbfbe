package util

import (
	"net/http"
	"testing"
	"time"
)

func TestNewProxyFunc_Overrides(t *testing.T) {
	proxy := NewProxyFunc("http://http-proxy:3128", "http://https-proxy:3128", "internal.example")

	tests := []struct {
		url      string
		expected string
	}{
		{"http://openrouter.ai/api/v1", "http://http-proxy:3128"},
		{"https://openrouter.ai/api/v1", "http://https-proxy:3128"},
		{"https://internal.example/v1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, tt.url, nil)
			if err != nil {
				t.Fatal(err)
			}
			got, err := proxy(req)
			if err != nil {
				t.Fatalf("proxy returned error: %v", err)
			}
			if tt.expected == "" {
				if got != nil {
					t.Errorf("expected no proxy, got %s", got)
				}
				return
			}
			if got == nil || got.String() != tt.expected {
				t.Errorf("expected %s, got %v", tt.expected, got)
			}
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(5*time.Second, "http://proxy:3128", "", "")
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok || transport.Proxy == nil {
		t.Fatal("expected transport with proxy func")
	}
}
