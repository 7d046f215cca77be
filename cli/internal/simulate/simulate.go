// Package simulate walks generated visitors through a funnel deployment.
package simulate

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/techview-systems/leadpixel-stack/cli/internal/client"
)

// Persona is one generated visitor.
type Persona struct {
	Name       string
	Email      string
	Phone      string
	PostalCode string
	Visitor    client.Visitor
}

// NewPersona draws a visitor from f. pixelBlockedRate is the chance the
// browser pixel is unavailable and fbc is set for roughly half of visitors.
func NewPersona(f *gofakeit.Faker, pixelBlockedRate float64) Persona {
	now := time.Now().UnixMilli()
	p := Persona{
		Name:       f.FirstName() + " " + f.LastName(),
		Email:      f.Email(),
		Phone:      f.Numerify("(##) 9####-####"),
		PostalCode: f.Numerify("#####-###"),
		Visitor: client.Visitor{
			IP:             f.IPv4Address(),
			UserAgent:      f.UserAgent(),
			FBP:            "fb.1." + strconv.FormatInt(now, 10) + "." + f.Numerify("##########"),
			PixelAvailable: f.Float64() >= pixelBlockedRate,
		},
	}
	if f.Bool() {
		p.Visitor.FBC = "fb.1." + strconv.FormatInt(now, 10) + "." + f.LetterN(24)
	}
	return p
}

type Config struct {
	OperatorID string
	Count      int
	// AbandonRate is the chance a visitor stops before each forward step.
	AbandonRate      float64
	PixelBlockedRate float64
	Seed             int64
	// SourceURL is the landing page the session reports.
	SourceURL string
}

type Report struct {
	Started   int            `json:"started"`
	Completed int            `json:"completed"`
	Abandoned int            `json:"abandoned"`
	Failed    int            `json:"failed"`
	Events    map[string]int `json:"events"`
}

type Runner struct {
	client *client.Client
	cfg    Config
	faker  *gofakeit.Faker
}

func NewRunner(c *client.Client, cfg Config) *Runner {
	if cfg.Count <= 0 {
		cfg.Count = 1
	}
	if cfg.SourceURL == "" {
		cfg.SourceURL = "https://tv.example.com/?utm_source=leadctl&utm_medium=simulation"
	}
	return &Runner{client: c, cfg: cfg, faker: gofakeit.New(cfg.Seed)}
}

// Run walks Count visitors through the funnel, one at a time.
func (r *Runner) Run() (*Report, error) {
	funnel, err := r.client.GetFunnel(r.cfg.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load funnel: %w", err)
	}
	if len(funnel.Plans) == 0 || len(funnel.SourceOptions) == 0 {
		return nil, fmt.Errorf("funnel %s has no plans or source options", r.cfg.OperatorID)
	}

	report := &Report{Events: map[string]int{}}
	for i := 0; i < r.cfg.Count; i++ {
		persona := NewPersona(r.faker, r.cfg.PixelBlockedRate)
		outcome, err := r.journey(funnel, persona, report)
		switch {
		case err != nil:
			report.Failed++
			log.Printf("visitor %d failed: %v", i+1, err)
		case outcome:
			report.Completed++
		default:
			report.Abandoned++
		}
	}
	return report, nil
}

// journey reports whether the visitor reached the end.
func (r *Runner) journey(funnel *client.Funnel, p Persona, report *Report) (bool, error) {
	started, err := r.client.StartSession(r.cfg.OperatorID, r.cfg.SourceURL)
	if err != nil {
		return false, err
	}
	report.Started++

	plan := funnel.Plans[r.faker.IntRange(0, len(funnel.Plans)-1)]
	steps := []map[string]any{
		{"name": p.Name, "email": p.Email, "phone": p.Phone, "postal_code": p.PostalCode},
		{"plan_id": plan.ID},
		{"source": r.faker.RandomString(funnel.SourceOptions)},
		{"confirm": true},
	}
	for _, input := range steps {
		if r.faker.Float64() < r.cfg.AbandonRate {
			return false, nil
		}
		res, err := r.client.Advance(r.cfg.OperatorID, started.Session.ID, input, p.Visitor)
		if err != nil {
			return false, err
		}
		report.Events[res.Event]++
	}
	return true, nil
}
