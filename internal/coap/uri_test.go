package coap

import "testing"

func TestNormaliseUriPath(t *testing.T) {
	cases := map[string]string{
		"/c/cp":        "/c/cp",
		"c/cp":         "/c/cp",
		"/c/cp/":       "/c/cp",
		"":             "/",
		"/":            "/",
		"  /c/cp  ":    "/c/cp",
		"/c%2Fcp":      "/c/cp",
		"/c/c%70":      "/c/cp",
	}
	for in, want := range cases {
		if got := normaliseUriPath(in); got != want {
			t.Errorf("normaliseUriPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitAndJoinUriPathRoundTrip(t *testing.T) {
	paths := []string{"/", "/c/cp", "/a/b/c"}
	for _, p := range paths {
		segments := splitUriPath(p)
		if got := joinUriPath(segments); got != p {
			t.Errorf("joinUriPath(splitUriPath(%q)) = %q, want %q", p, got, p)
		}
	}
}

func TestMessageSetAndGetUriPath(t *testing.T) {
	m := &Message{}
	m.SetUriPath("/c/cp")
	if got := m.UriPath(); got != "/c/cp" {
		t.Fatalf("UriPath() = %q, want /c/cp", got)
	}
	if len(m.Options) != 2 {
		t.Fatalf("expected 2 Uri-Path options, got %d", len(m.Options))
	}

	m.SetUriPath("/a")
	if got := m.UriPath(); got != "/a" {
		t.Fatalf("UriPath() after replace = %q, want /a", got)
	}
	if len(m.Options) != 1 {
		t.Fatalf("expected replaced options to leave exactly 1 Uri-Path option, got %d", len(m.Options))
	}
}
