package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is a purchasable subscription plan.
type Plan struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	PriceID  string `yaml:"price_id" json:"-"`
	Interval string `yaml:"interval" json:"interval"`
}

// Plans is the subscription catalog keyed by plan id.
type Plans map[string]Plan

type plansFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlans reads the plan catalog from a YAML file.
func LoadPlans(path string) (Plans, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file %s: %w", path, err)
	}
	return ParsePlans(data)
}

// ParsePlans decodes a plan catalog. Every plan needs an id and a Stripe price id.
func ParsePlans(data []byte) (Plans, error) {
	var f plansFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plans: %w", err)
	}
	plans := make(Plans, len(f.Plans))
	for _, p := range f.Plans {
		if p.ID == "" || p.PriceID == "" {
			return nil, fmt.Errorf("plan %q is missing id or price_id", p.Name)
		}
		if _, dup := plans[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		plans[p.ID] = p
	}
	return plans, nil
}
