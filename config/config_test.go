package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Calls.AdmissionPolicy != "waiting_room" {
		t.Fatalf("admission policy = %q, want waiting_room", cfg.Calls.AdmissionPolicy)
	}
	if cfg.Calls.CreatorLeave != "transfer" {
		t.Fatalf("creator leave = %q, want transfer", cfg.Calls.CreatorLeave)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("redis addr = %q, want disabled by default", cfg.Redis.Addr)
	}
	if cfg.Debug.Endpoints {
		t.Fatalf("debug endpoints enabled by default")
	}
	if len(cfg.WebRTC.ICEUrls) == 0 {
		t.Fatalf("no default ICE servers")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CALL_ADMISSION_POLICY", "open")
	t.Setenv("CALL_STALE_AFTER_SEC", "120")
	t.Setenv("DEBUG_ENDPOINTS", "true")
	t.Setenv("WEBRTC_ICE_URLS", "stun:a.example:3478, turn:b.example:3478 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Calls.AdmissionPolicy != "open" {
		t.Fatalf("admission policy = %q", cfg.Calls.AdmissionPolicy)
	}
	if cfg.Calls.StaleAfterSec != 120 {
		t.Fatalf("stale after = %d", cfg.Calls.StaleAfterSec)
	}
	if !cfg.Debug.Endpoints {
		t.Fatalf("debug endpoints not enabled")
	}
	want := []string{"stun:a.example:3478", "turn:b.example:3478"}
	if len(cfg.WebRTC.ICEUrls) != len(want) {
		t.Fatalf("ice urls = %v, want %v", cfg.WebRTC.ICEUrls, want)
	}
	for i := range want {
		if cfg.WebRTC.ICEUrls[i] != want[i] {
			t.Fatalf("ice urls = %v, want %v", cfg.WebRTC.ICEUrls, want)
		}
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("CALL_STALE_AFTER_SEC", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Calls.StaleAfterSec != 3600 {
		t.Fatalf("stale after = %d, want default 3600", cfg.Calls.StaleAfterSec)
	}
}
