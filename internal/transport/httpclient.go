// Package transport общие настройки исходящих HTTP-соединений.
package transport

import (
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout         = 5 * time.Second
	keepAlive           = 30 * time.Second
	maxIdleConnsPerHost = 16
)

// NewHTTPClient клиент для обращений к серверу истории. Все запросы идут
// на один хост, поэтому пул простаивающих соединений держится на хост.
// timeout <= 0 снимает общий лимит, остаются только таймауты соединения.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          maxIdleConnsPerHost * 4,
			MaxIdleConnsPerHost:   maxIdleConnsPerHost,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   dialTimeout,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
