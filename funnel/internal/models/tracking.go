package models

import "time"

// Plan is a sellable subscription.
type Plan struct {
	ID      string  `json:"id" validate:"required,max=64"`
	Name    string  `json:"name" validate:"required,max=120"`
	Price   float64 `json:"price" validate:"gte=0"`
	Screens int     `json:"screens" validate:"gte=1"`
}

// DefaultPlans is the catalogue used when an operator has not configured one.
var DefaultPlans = []Plan{
	{ID: "1t_mensal", Name: "Mensal (1 Tela)", Price: 29.90, Screens: 1},
	{ID: "1t_trimestral", Name: "Trimestral (1 Tela)", Price: 74.90, Screens: 1},
	{ID: "1t_semestral", Name: "Semestral (1 Tela)", Price: 149.90, Screens: 1},
	{ID: "1t_anual", Name: "Anual (1 Tela)", Price: 289.90, Screens: 1},
	{ID: "2t_mensal", Name: "Mensal (2 Telas)", Price: 54.90, Screens: 2},
	{ID: "2t_trimestral", Name: "Trimestral (2 Telas)", Price: 149.90, Screens: 2},
	{ID: "2t_semestral", Name: "Semestral (2 Telas)", Price: 289.90, Screens: 2},
	{ID: "2t_anual", Name: "Anual (2 Telas)", Price: 569.90, Screens: 2},
}

// FindPlan looks a plan up by id.
func FindPlan(plans []Plan, id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// TrackingConfiguration holds an operator's pixel settings and catalogue.
type TrackingConfiguration struct {
	OperatorID  string    `json:"operator_id"`
	PixelID     string    `json:"pixel_id"`
	AccessToken string    `json:"-"`
	UserName    string    `json:"user_name"`
	Plans       []Plan    `json:"plans,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Active reports whether server-side emission can use this configuration.
func (c *TrackingConfiguration) Active() bool {
	return c != nil && c.PixelID != "" && c.AccessToken != ""
}

// Catalogue returns the operator's plans, or DefaultPlans when none are set.
func (c *TrackingConfiguration) Catalogue() []Plan {
	if c == nil || len(c.Plans) == 0 {
		return DefaultPlans
	}
	return c.Plans
}

// DisplayName is the brand shown on the funnel page.
func (c *TrackingConfiguration) DisplayName() string {
	if c == nil || c.UserName == "" {
		return DefaultDisplayName
	}
	return c.UserName
}

// DefaultDisplayName is shown for operators without a configuration.
const DefaultDisplayName = "TechView IPTV"
