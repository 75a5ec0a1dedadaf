package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// hitSecured runs one request through SecurityHeaders with an optional
// pre-middleware and returns the response headers.
func hitSecured(t *testing.T, opts SecurityOptions, pre gin.HandlerFunc, mutate func(*http.Request)) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opts))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_BaselineOnly(t *testing.T) {
	h := hitSecured(t, SecurityOptions{}, nil, nil)

	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", h.Get("X-Content-Type-Options"))
	}
	if h.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("X-Frame-Options = %q", h.Get("X-Frame-Options"))
	}
	if h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("Referrer-Policy = %q", h.Get("Referrer-Policy"))
	}

	// everything optional stays off by default
	for _, name := range []string{
		"Permissions-Policy", "X-Permitted-Cross-Domain-Policies",
		"Cache-Control", "Pragma", "Expires",
		"Strict-Transport-Security",
	} {
		if got := h.Get(name); got != "" {
			t.Fatalf("%s = %q, want unset", name, got)
		}
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	setRID := func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-1")
		c.Next()
	}

	h := hitSecured(t, SecurityOptions{}, setRID, nil)
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expose = %q", got)
	}

	// appended to an existing list
	h = hitSecured(t, SecurityOptions{}, func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-2")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Next()
	}, nil)
	if got := h.Get("Access-Control-Expose-Headers"); got != "Content-Length, X-Request-ID" {
		t.Fatalf("expose = %q", got)
	}

	// never duplicated
	h = hitSecured(t, SecurityOptions{}, func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-3")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, Content-Length")
		c.Next()
	}, nil)
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, Content-Length" {
		t.Fatalf("expose = %q", got)
	}
}

func TestSecurityHeaders_PolicyNoStoreAndHSTS(t *testing.T) {
	h := hitSecured(t, SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	}, nil, func(req *http.Request) {
		req.TLS = &tls.ConnectionState{}
	})

	if h.Get("Permissions-Policy") == "" {
		t.Fatal("missing Permissions-Policy")
	}
	if h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("cross-domain policy = %q", h.Get("X-Permitted-Cross-Domain-Policies"))
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("cache headers = %q / %q / %q", h.Get("Cache-Control"), h.Get("Pragma"), h.Get("Expires"))
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_HSTSRequiresHTTPS(t *testing.T) {
	opts := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}

	// plain HTTP request: HSTS stays off even when enabled
	h := hitSecured(t, opts, nil, nil)
	if got := h.Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS over http = %q", got)
	}

	// proxy-terminated TLS counts
	h = hitSecured(t, opts, nil, func(req *http.Request) {
		req.Header.Set("X-Forwarded-Proto", "https")
	})
	if h.Get("Strict-Transport-Security") == "" {
		t.Fatal("HSTS missing behind X-Forwarded-Proto=https")
	}
}

func Test_isHTTPS(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(plain) {
		t.Fatal("plain request reported as https")
	}

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.TLS = &tls.ConnectionState{}
	if !isHTTPS(direct) {
		t.Fatal("TLS request not reported as https")
	}

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")
	if !isHTTPS(proxied) {
		t.Fatal("forwarded request not reported as https")
	}
}
