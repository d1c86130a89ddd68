package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/navalha-app/navalha/services/booking-service/internal/availability"
	"github.com/navalha-app/navalha/services/booking-service/internal/booking"
	"github.com/navalha-app/navalha/services/booking-service/internal/storage"
)

// ShopFile is the TOML description of one shop for local use.
type ShopFile struct {
	UTCOffsetMinutes *int                  `toml:"utc_offset_minutes"`
	DBPath           string                `toml:"db_path"`
	Suggestions      int                   `toml:"suggestions"`
	Shop             ShopSection           `toml:"shop"`
	Services         []ServiceSection      `toml:"services"`
	Professionals    []ProfessionalSection `toml:"professionals"`
}

type ShopSection struct {
	ID                     string `toml:"id"`
	Name                   string `toml:"name"`
	Opens                  string `toml:"opens"`  // "09:00"
	Closes                 string `toml:"closes"` // "19:00"
	SlotGranularityMinutes int    `toml:"slot_granularity_minutes"`
}

type ServiceSection struct {
	ID              string `toml:"id"`
	Name            string `toml:"name"`
	DurationMinutes int    `toml:"duration_minutes"`
}

type ProfessionalSection struct {
	ID     string `toml:"id"`
	Name   string `toml:"name"`
	Active *bool  `toml:"active"` // defaults to true
}

// LoadShopFile reads and validates path. A relative db_path is resolved
// against the file's directory.
func LoadShopFile(path string) (*ShopFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading shop file: %w", err)
	}
	var f ShopFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing shop file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shop file: %w", err)
	}
	if f.DBPath == "" {
		f.DBPath = "navalha.db"
	}
	if f.DBPath != ":memory:" && !filepath.IsAbs(f.DBPath) {
		f.DBPath = filepath.Join(filepath.Dir(path), f.DBPath)
	}
	return &f, nil
}

func (f *ShopFile) Validate() error {
	if strings.TrimSpace(f.Shop.ID) == "" {
		return errors.New("shop.id is required")
	}
	if _, err := f.window(); err != nil {
		return err
	}
	if f.Shop.SlotGranularityMinutes < 0 {
		return errors.New("shop.slot_granularity_minutes must not be negative")
	}
	seen := map[string]bool{}
	for _, s := range f.Services {
		if s.ID == "" || s.Name == "" {
			return errors.New("every service needs an id and a name")
		}
		if seen["svc:"+s.ID] {
			return fmt.Errorf("duplicate service id %q", s.ID)
		}
		seen["svc:"+s.ID] = true
	}
	for _, p := range f.Professionals {
		if p.ID == "" || p.Name == "" {
			return errors.New("every professional needs an id and a name")
		}
		if seen["pro:"+p.ID] {
			return fmt.Errorf("duplicate professional id %q", p.ID)
		}
		seen["pro:"+p.ID] = true
	}
	return nil
}

func (f *ShopFile) window() (availability.OperatingWindow, error) {
	opens, err := availability.ParseLocalTime(f.Shop.Opens)
	if err != nil {
		return availability.OperatingWindow{}, fmt.Errorf("shop.opens: %w", err)
	}
	closes, err := availability.ParseLocalTime(f.Shop.Closes)
	if err != nil {
		return availability.OperatingWindow{}, fmt.Errorf("shop.closes: %w", err)
	}
	return availability.OperatingWindow{Opens: opens, Closes: closes}, nil
}

func (f *ShopFile) Offset() int {
	if f.UTCOffsetMinutes == nil {
		return availability.DefaultOffsetMinutes
	}
	return *f.UTCOffsetMinutes
}

// Catalog loads the file into an in-memory catalog. An inverted window is
// kept as is; it simply offers no slots.
func (f *ShopFile) Catalog() *storage.MemoryCatalog {
	c := storage.NewMemoryCatalog()
	window, _ := f.window()
	c.PutShop(booking.ShopSettings{
		ShopID:             f.Shop.ID,
		Name:               f.Shop.Name,
		Window:             window,
		GranularityMinutes: f.Shop.SlotGranularityMinutes,
	})
	for _, s := range f.Services {
		c.PutService(f.Shop.ID, availability.ServiceSpec{ID: s.ID, Name: s.Name, DurationMinutes: s.DurationMinutes})
	}
	for _, p := range f.Professionals {
		active := p.Active == nil || *p.Active
		c.PutProfessional(booking.Professional{ID: p.ID, ShopID: f.Shop.ID, Name: p.Name, IsActive: active})
	}
	return c
}
