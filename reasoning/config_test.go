package reasoning

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"max iterations", Config{MaxIterations: 0, MaxConcurrentStreams: 1, MaxBufferSize: 1, MaxIdenticalCalls: 1, MaxToolFailures: 1}},
		{"max concurrent streams", Config{MaxIterations: 1, MaxConcurrentStreams: 0, MaxBufferSize: 1, MaxIdenticalCalls: 1, MaxToolFailures: 1}},
		{"max buffer size", Config{MaxIterations: 1, MaxConcurrentStreams: 1, MaxBufferSize: 0, MaxIdenticalCalls: 1, MaxToolFailures: 1}},
		{"max identical calls", Config{MaxIterations: 1, MaxConcurrentStreams: 1, MaxBufferSize: 1, MaxIdenticalCalls: 0, MaxToolFailures: 1}},
		{"max tool failures", Config{MaxIterations: 1, MaxConcurrentStreams: 1, MaxBufferSize: 1, MaxIdenticalCalls: 1, MaxToolFailures: 0}},
		{"negative retry attempts", Config{MaxIterations: 1, MaxConcurrentStreams: 1, MaxBufferSize: 1, MaxIdenticalCalls: 1, MaxToolFailures: 1, MaxRetryAttempts: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestSetDefaultsFillsOnlyZeroFields(t *testing.T) {
	cfg := Config{MaxIterations: 5}
	cfg.SetDefaults()

	if cfg.MaxIterations != 5 {
		t.Errorf("explicit MaxIterations should survive SetDefaults, got %d", cfg.MaxIterations)
	}
	d := DefaultConfig()
	if cfg.MaxConcurrentStreams != d.MaxConcurrentStreams {
		t.Errorf("expected MaxConcurrentStreams to be filled with default %d, got %d", d.MaxConcurrentStreams, cfg.MaxConcurrentStreams)
	}
	if cfg.MaxBufferSize != d.MaxBufferSize {
		t.Errorf("expected MaxBufferSize default, got %d", cfg.MaxBufferSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config after SetDefaults should validate, got %v", err)
	}
}
