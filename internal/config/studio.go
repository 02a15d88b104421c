package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"studiobook/internal/availability"
	"studiobook/internal/model"
	"studiobook/internal/pricing"

	"gopkg.in/yaml.v3"
)

// StudioConfig is the root of studio.yaml: the seed catalog and opening hours.
type StudioConfig struct {
	Staff          []model.StaffMember   `yaml:"staff"`
	RateCard       pricing.RateCard      `yaml:"rate_card"`
	Availability   availability.Snapshot `yaml:"availability"`
	BookedOutDates []string              `yaml:"booked_out_dates"`
}

// LoadStudioConfig loads and validates studio configuration from a YAML file.
func LoadStudioConfig(path string) (*StudioConfig, error) {
	if path == "" {
		path = "configs/studio.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read studio config: %w", err)
	}

	var cfg StudioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse studio config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate studio config: %w", err)
	}

	return &cfg, nil
}

// DefaultStudioConfig is used when studio.yaml is absent.
func DefaultStudioConfig() *StudioConfig {
	cfg := &StudioConfig{}
	cfg.applyDefaults()
	return cfg
}

// Validate checks the configuration for errors.
func (c *StudioConfig) Validate() error {
	ids := make(map[string]bool)
	for i, s := range c.Staff {
		if s.ID == "" {
			return fmt.Errorf("staff[%d]: id is required", i)
		}
		if ids[s.ID] {
			return fmt.Errorf("staff[%d]: duplicate id '%s'", i, s.ID)
		}
		ids[s.ID] = true
		if s.Name == "" {
			return fmt.Errorf("staff[%d]: name is required", i)
		}
	}

	if err := c.RateCard.Validate(); err != nil {
		return fmt.Errorf("rate_card: %w", err)
	}

	if err := c.Availability.Validate(); err != nil {
		return fmt.Errorf("availability: %w", err)
	}

	for i, d := range c.BookedOutDates {
		if _, err := time.Parse(availability.DateLayout, d); err != nil {
			return fmt.Errorf("booked_out_dates[%d]: invalid date format '%s', expected YYYY-MM-DD", i, d)
		}
	}

	return nil
}

// applyDefaults fills sections left empty in the file.
func (c *StudioConfig) applyDefaults() {
	if len(c.Staff) == 0 {
		c.Staff = model.DefaultStaff()
	}

	def := pricing.DefaultRateCard()
	if len(c.RateCard.Rooms) == 0 {
		c.RateCard.Rooms = def.Rooms
	}
	if len(c.RateCard.Services) == 0 {
		c.RateCard.Services = def.Services
	}

	if len(c.Availability.DayConfigs) == 0 {
		c.Availability.DayConfigs = availability.DefaultSnapshot().DayConfigs
	}
	if c.Availability.DateConfigs == nil {
		c.Availability.DateConfigs = map[string]availability.DayConfig{}
	}

	sort.Strings(c.BookedOutDates)
}

// BookedOut returns the booked-out dates as a set.
func (c *StudioConfig) BookedOut() availability.DateSet {
	return availability.NewDateSet(c.BookedOutDates...)
}

// String returns a summary of the configuration.
func (c *StudioConfig) String() string {
	return fmt.Sprintf("StudioConfig: %d staff, %d rooms, %d services, %d day configs, %d date configs, %d booked-out dates",
		len(c.Staff), len(c.RateCard.Rooms), len(c.RateCard.Services),
		len(c.Availability.DayConfigs), len(c.Availability.DateConfigs), len(c.BookedOutDates))
}
