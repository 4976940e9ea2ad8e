package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"activity-storefront/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk catalog format. Prices are strings so they keep
// their exact decimal value.
type seedFile struct {
	Locations []seedLocation `yaml:"locations"`
	Products  []seedProduct  `yaml:"products"`
}

type seedLocation struct {
	Name      string  `yaml:"name"`
	Address   string  `yaml:"address"`
	Suburb    string  `yaml:"suburb"`
	State     string  `yaml:"state"`
	Postcode  string  `yaml:"postcode"`
	Phone     string  `yaml:"phone"`
	Email     string  `yaml:"email"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Capacity  int     `yaml:"capacity"`
}

type seedAddOn struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
}

type seedTemplate struct {
	Location string `yaml:"location"`
	Day      string `yaml:"day"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	From     string `yaml:"from"`
	Until    string `yaml:"until"`
	Capacity int    `yaml:"capacity"`
}

type seedProduct struct {
	Name              string         `yaml:"name"`
	Type              string         `yaml:"type"`
	Subtype           string         `yaml:"subtype"`
	Description       string         `yaml:"description"`
	Price             string         `yaml:"price"`
	EarlyBirdDiscount string         `yaml:"early_bird_discount"`
	EarlyBirdDeadline string         `yaml:"early_bird_deadline"`
	SiblingDiscount   string         `yaml:"sibling_discount"`
	Duration          int            `yaml:"duration"`
	Capacity          int            `yaml:"capacity"`
	MinAge            int            `yaml:"min_age"`
	MaxAge            int            `yaml:"max_age"`
	Features          []string       `yaml:"features"`
	Inactive          bool           `yaml:"inactive"`
	AddOns            []seedAddOn    `yaml:"add_ons"`
	Templates         []seedTemplate `yaml:"templates"`
}

// catalog is a parsed seed file. Templates reference locations by name and
// are resolved once the locations exist.
type catalog struct {
	Locations []*models.Location
	Products  []*models.Product
	Templates map[string][]pendingTemplate // keyed by product name
}

type pendingTemplate struct {
	LocationName string
	Template     models.RecurringTemplate
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

func parseCatalog(r io.Reader) (*catalog, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	out := &catalog{Templates: make(map[string][]pendingTemplate)}

	for _, l := range file.Locations {
		loc := &models.Location{
			Name:      l.Name,
			Address:   l.Address,
			Suburb:    l.Suburb,
			State:     strings.ToUpper(l.State),
			Postcode:  l.Postcode,
			Phone:     l.Phone,
			Email:     l.Email,
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
			Capacity:  l.Capacity,
			Active:    true,
		}
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("location %q: %w", l.Name, err)
		}
		out.Locations = append(out.Locations, loc)
	}

	for _, p := range file.Products {
		product, err := p.toModel()
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", p.Name, err)
		}
		out.Products = append(out.Products, product)

		for _, t := range p.Templates {
			tmpl, err := t.toModel()
			if err != nil {
				return nil, fmt.Errorf("product %q template: %w", p.Name, err)
			}
			out.Templates[p.Name] = append(out.Templates[p.Name], pendingTemplate{
				LocationName: t.Location,
				Template:     tmpl,
			})
		}
	}

	return out, nil
}

func (p seedProduct) toModel() (*models.Product, error) {
	base, err := decimal.NewFromString(p.Price)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", p.Price, err)
	}

	product := &models.Product{
		Name:        p.Name,
		Type:        models.ProductType(strings.ToUpper(p.Type)),
		Subtype:     p.Subtype,
		Description: p.Description,
		Pricing:     models.Pricing{BasePrice: base},
		Duration:    p.Duration,
		Capacity:    p.Capacity,
		AgeRange:    models.AgeRange{Min: p.MinAge, Max: p.MaxAge},
		Features:    p.Features,
		Active:      !p.Inactive,
	}

	if p.EarlyBirdDiscount != "" {
		rate, err := decimal.NewFromString(p.EarlyBirdDiscount)
		if err != nil {
			return nil, fmt.Errorf("early_bird_discount %q: %w", p.EarlyBirdDiscount, err)
		}
		product.Pricing.EarlyBirdDiscount = &rate
	}
	if p.EarlyBirdDeadline != "" {
		deadline, err := time.Parse("2006-01-02", p.EarlyBirdDeadline)
		if err != nil {
			return nil, fmt.Errorf("early_bird_deadline %q: %w", p.EarlyBirdDeadline, err)
		}
		product.Pricing.EarlyBirdDeadline = &deadline
	}
	if p.SiblingDiscount != "" {
		rate, err := decimal.NewFromString(p.SiblingDiscount)
		if err != nil {
			return nil, fmt.Errorf("sibling_discount %q: %w", p.SiblingDiscount, err)
		}
		product.Pricing.SiblingDiscount = &rate
	}

	for _, a := range p.AddOns {
		price, err := decimal.NewFromString(a.Price)
		if err != nil {
			return nil, fmt.Errorf("add-on %q price: %w", a.Name, err)
		}
		product.AddOns = append(product.AddOns, models.AddOn{
			Name:        a.Name,
			Description: a.Description,
			Price:       price,
			Active:      true,
		})
	}

	if err := product.Validate(); err != nil {
		return nil, err
	}
	return product, nil
}

func (t seedTemplate) toModel() (models.RecurringTemplate, error) {
	day, ok := weekdays[strings.ToLower(t.Day)]
	if !ok {
		return models.RecurringTemplate{}, fmt.Errorf("unknown day %q", t.Day)
	}
	from, err := time.Parse("2006-01-02", t.From)
	if err != nil {
		return models.RecurringTemplate{}, fmt.Errorf("from %q: %w", t.From, err)
	}
	until, err := time.Parse("2006-01-02", t.Until)
	if err != nil {
		return models.RecurringTemplate{}, fmt.Errorf("until %q: %w", t.Until, err)
	}
	if t.Location == "" {
		return models.RecurringTemplate{}, fmt.Errorf("location is required")
	}
	return models.RecurringTemplate{
		DayOfWeek: day,
		StartTime: t.Start,
		EndTime:   t.End,
		StartDate: from,
		EndDate:   until,
		Capacity:  t.Capacity,
	}, nil
}
