package session

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var sameSiteModes = []http.SameSite{
	http.SameSiteDefaultMode,
	http.SameSiteLaxMode,
	http.SameSiteStrictMode,
	http.SameSiteNoneMode,
}

// expireCookies writes every named cookie as expired under each combination
// of path, domain, secure, httpOnly and SameSite; the scope a cookie was set
// with is not known. It returns an error naming cookies that are still visible.
func expireCookies(jar http.CookieJar, base *url.URL, names, paths []string) error {
	if jar == nil {
		return fmt.Errorf("cookie store: %w", ErrUnsupported)
	}
	if base == nil || base.Host == "" {
		return fmt.Errorf("cookie store: no base url")
	}

	if len(paths) == 0 {
		paths = []string{"/"}
	}
	targets := cookieURLs(base, []string{"/"})
	domains := cookieDomains(base.Hostname())

	for _, name := range names {
		for _, path := range paths {
			for _, domain := range domains {
				for _, secure := range []bool{false, true} {
					for _, httpOnly := range []bool{false, true} {
						for _, mode := range sameSiteModes {
							c := &http.Cookie{
								Name:     name,
								Value:    "",
								Path:     path,
								Domain:   domain,
								MaxAge:   -1,
								Secure:   secure,
								HttpOnly: httpOnly,
								SameSite: mode,
							}
							for _, u := range targets {
								jar.SetCookies(u, []*http.Cookie{c})
							}
						}
					}
				}
			}
		}
	}

	var left []string
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	for _, u := range cookieURLs(base, paths) {
		for _, c := range jar.Cookies(u) {
			if wanted[c.Name] {
				wanted[c.Name] = false
				left = append(left, c.Name)
			}
		}
	}
	if len(left) > 0 {
		return fmt.Errorf("cookies still present: %s", strings.Join(left, ", "))
	}
	return nil
}

// cookieURLs returns one http and one https URL per path.
func cookieURLs(base *url.URL, paths []string) []*url.URL {
	out := make([]*url.URL, 0, 2*len(paths))
	for _, scheme := range []string{"http", "https"} {
		for _, p := range paths {
			out = append(out, &url.URL{Scheme: scheme, Host: base.Host, Path: p})
		}
	}
	return out
}

// cookieDomains lists host-only, exact host and every wildcard parent domain.
func cookieDomains(host string) []string {
	domains := []string{""}
	if host == "" {
		return domains
	}
	domains = append(domains, host)
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return domains
	}
	domains = append(domains, "."+host)
	parts := strings.Split(host, ".")
	for i := 1; i < len(parts)-1; i++ {
		parent := strings.Join(parts[i:], ".")
		domains = append(domains, parent, "."+parent)
	}
	return domains
}
