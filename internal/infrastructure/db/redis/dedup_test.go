package redis

import "testing"

func TestKey(t *testing.T) {
	if got := key("stripe", "evt_123"); got != "dedup:billing:stripe:evt_123" {
		t.Fatalf("unexpected key: %s", got)
	}
}
