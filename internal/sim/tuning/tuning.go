package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	VisitWindowTicks uint64 `yaml:"visit_window_ticks"`
	VisitRadius      int    `yaml:"visit_radius"`
	HistoryCap       int    `yaml:"history_cap"`

	PaymentSlots   int `yaml:"payment_slots"`
	TradeSlots     int `yaml:"trade_slots"`
	RewardTTLHours int `yaml:"reward_ttl_hours"`

	Fare FareRates  `yaml:"fare"`
	Sync SyncPolicy `yaml:"sync"`
}

type FareRates struct {
	MetersPerUnit  int    `yaml:"meters_per_unit"`
	PerVisitorBase int    `yaml:"per_visitor_base"`
	BonusInterval  int    `yaml:"bonus_interval"`
	BonusThreshold int    `yaml:"bonus_threshold"`
	CurrencyItem   string `yaml:"currency_item"`
}

type SyncPolicy struct {
	// Outbound sync is skipped while more than this many payment-buffer
	// slots are occupied, so automation mid-extraction is not clobbered.
	MostlyEmptyMaxSlots int `yaml:"mostly_empty_max_slots"`
}

func Default() Tuning {
	return Tuning{
		TickRateHz:       5,
		VisitWindowTicks: 600,
		VisitRadius:      48,
		HistoryCap:       50,
		PaymentSlots:     18,
		TradeSlots:       2,
		RewardTTLHours:   24,
		Fare: FareRates{
			MetersPerUnit:  500,
			PerVisitorBase: 2,
			BonusInterval:  100,
			BonusThreshold: 1000,
			CurrencyItem:   "EMERALD",
		},
		Sync: SyncPolicy{MostlyEmptyMaxSlots: 2},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = Default().TickRateHz
	}
	if t.VisitWindowTicks == 0 {
		t.VisitWindowTicks = Default().VisitWindowTicks
	}
	if t.HistoryCap <= 0 {
		t.HistoryCap = Default().HistoryCap
	}
	if t.PaymentSlots <= 0 {
		t.PaymentSlots = Default().PaymentSlots
	}
	if t.RewardTTLHours <= 0 {
		t.RewardTTLHours = Default().RewardTTLHours
	}
	return t, nil
}
