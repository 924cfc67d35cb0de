package cachekey

import (
	"net/url"
	"testing"
)

func TestIsInternal(t *testing.T) {
	cases := map[string]bool{
		"/":                     true,
		"/page":                 true,
		"/page?q=1#top":         true,
		"//cdn.example.com/x":   false,
		"https://example.com/a": false,
		"page":                  false,
		"#top":                  false,
		"":                      false,
		"mailto:me@example.com": false,
	}
	for href, internal := range cases {
		if IsInternal(href) != internal {
			t.Fatalf("IsInternal(%q) should be %v", href, internal)
		}
	}
}

func TestResolve(t *testing.T) {
	base, _ := url.Parse("https://dev.localhost/blog/post?x=1")
	u, err := Resolve(base, "/page?q=1")
	if err != nil {
		t.Fatal(err)
	}
	if u.String() != "https://dev.localhost/page?q=1" {
		t.Fatalf("Resolved url is %s", u)
	}
	if _, err := Resolve(base, "https://other.localhost/"); err != ErrorNotInternal {
		t.Fatalf("Error is %v", err)
	}
}

func TestKeyDropsFragment(t *testing.T) {
	key, err := Key("https://dev.localhost/page?q=1#section")
	if err != nil {
		t.Fatal(err)
	}
	if key != "https://dev.localhost/page?q=1" {
		t.Fatalf("Key is %s", key)
	}
}

func TestKeyRequiresAbsoluteURL(t *testing.T) {
	if _, err := Key("/page"); err == nil {
		t.Fatal("Expected error for relative url")
	}
}
