package transport

import (
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(3 * time.Second)
	if c.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout %v", c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.Transport)
	}
	if tr.MaxIdleConnsPerHost != maxIdleConnsPerHost {
		t.Fatalf("unexpected idle pool %d", tr.MaxIdleConnsPerHost)
	}
}

func TestNewHTTPClientNegativeTimeout(t *testing.T) {
	if c := NewHTTPClient(-time.Second); c.Timeout != 0 {
		t.Fatalf("expected no overall timeout, got %v", c.Timeout)
	}
}
