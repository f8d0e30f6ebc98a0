package conduit

import "testing"

func TestMethodByToken(t *testing.T) {
	cases := []struct {
		token string
		want  MethodID
		ok    bool
	}{
		{"GET", MethodGET, true},
		{"POST", MethodPOST, true},
		{"PATCH", MethodPATCH, true},
		{"PURGE", MethodPURGE, true},
		{"M-SEARCH", MethodMSEARCH, true},
		{"BOGUS", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := methodByToken([]byte(c.token))
		if ok != c.ok {
			t.Errorf("methodByToken(%q) ok = %v, want %v", c.token, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("methodByToken(%q) = %v, want %v", c.token, got, c.want)
		}
	}
}

func TestMethodStringRoundTrip(t *testing.T) {
	for id := MethodID(0); id < methodCount; id++ {
		name := id.String()
		got, ok := methodByToken([]byte(name))
		if !ok || got != id {
			t.Errorf("round trip failed for %v: String() = %q, methodByToken = (%v, %v)", id, name, got, ok)
		}
	}
}
