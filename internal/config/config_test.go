package config

import "testing"

func TestLoadIncludesBillingDefaults(t *testing.T) {
	t.Setenv("TAX_RATE_1", "")
	t.Setenv("TAX_RATE_2", "")
	t.Setenv("QUOTE_VALIDITY_DAYS", "")

	cfg := Load()
	if cfg.TaxRate1.String() != "5" {
		t.Fatalf("expected default tax rate 1 of 5, got %s", cfg.TaxRate1)
	}
	if cfg.TaxRate2.String() != "9.975" {
		t.Fatalf("expected default tax rate 2 of 9.975, got %s", cfg.TaxRate2)
	}
	if cfg.QuoteValidityDays != 30 {
		t.Fatalf("expected default quote validity of 30 days, got %d", cfg.QuoteValidityDays)
	}
}

func TestLoadParsesBillingOverrides(t *testing.T) {
	t.Setenv("TAX_RATE_1", "6")
	t.Setenv("TAX_RATE_2", "10")
	t.Setenv("QUOTE_VALIDITY_DAYS", "45")
	t.Setenv("RATE_LIMIT_RPS", "10.5")

	cfg := Load()
	if cfg.TaxRate1.String() != "6" {
		t.Fatalf("expected tax rate 1 override, got %s", cfg.TaxRate1)
	}
	if cfg.TaxRate2.String() != "10" {
		t.Fatalf("expected tax rate 2 override, got %s", cfg.TaxRate2)
	}
	if cfg.QuoteValidityDays != 45 {
		t.Fatalf("expected quote validity 45, got %d", cfg.QuoteValidityDays)
	}
	if cfg.RateLimitRPS != 10.5 {
		t.Fatalf("expected rate limit rps 10.5, got %v", cfg.RateLimitRPS)
	}
}

func TestLoadFallsBackOnBadDecimal(t *testing.T) {
	t.Setenv("TAX_RATE_1", "not-a-number")

	cfg := Load()
	if cfg.TaxRate1.String() != "5" {
		t.Fatalf("expected fallback tax rate 1 of 5, got %s", cfg.TaxRate1)
	}
}
