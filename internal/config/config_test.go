package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	scanner := cfg.GetScanner()
	if scanner.LLMEnabled {
		t.Error("LLM assist should default to disabled")
	}
	if scanner.ScanTimeout != 15*time.Second {
		t.Errorf("scan timeout = %v", scanner.ScanTimeout)
	}

	server := cfg.GetServer()
	if server.FilterType != "postfix" {
		t.Errorf("filter type = %q", server.FilterType)
	}
	if server.VerdictHeader != "X-Phish-Verdict" {
		t.Errorf("verdict header = %q", server.VerdictHeader)
	}
	if server.BlockPhishing {
		t.Error("blocking should default to off")
	}

	store := cfg.GetStore()
	if store.Type != "memory" || !store.Enabled {
		t.Errorf("store defaults = %+v", store)
	}

	dns := cfg.GetDNS()
	if dns.Timeout != 3*time.Second || dns.CacheTTL != time.Hour {
		t.Errorf("dns defaults = %+v", dns)
	}
}

func TestOverride(t *testing.T) {
	v := NewEmptyViper()
	v.Set("server.block_phishing", true)
	v.Set("scanner.llm_enabled", true)
	cfg := NewFromViper(v)

	if !cfg.GetServer().BlockPhishing {
		t.Error("override lost")
	}
	if !cfg.GetScanner().LLMEnabled {
		t.Error("override lost")
	}
}
