// Package capi builds and transmits server-side conversion events.
package capi

import (
	"context"
	"time"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/cookies"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/hashing"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

// DefaultCurrency is the ISO code applied when none is configured.
const DefaultCurrency = "BRL"

// BuildInput is everything the Builder needs for one event.
type BuildInput struct {
	EventName models.EventName
	EventID   string
	User      models.UserData
	Custom    models.CustomData
	SourceURL string
	Cookies   cookies.Reader
	ClientIP  string
	UserAgent string
}

// Builder turns raw funnel data into a hashed TrackedEvent.
type Builder struct {
	currency string
	now      func() time.Time
}

// NewBuilder returns a Builder that stamps every event with currency.
func NewBuilder(currency string) *Builder {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Builder{currency: currency, now: time.Now}
}

// Currency is the deployment currency stamped on every event.
func (b *Builder) Currency() string { return b.currency }

// Build assembles the event. Missing cookies, IP or user agent degrade to
// absent fields; the only error is a context that is already done.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*models.TrackedEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jar := in.Cookies
	if jar == nil {
		jar = cookies.Empty
	}
	fbc, _ := jar.Get(cookies.ClickID)
	fbp, _ := jar.Get(cookies.BrowserID)

	custom := in.Custom
	custom.Currency = b.currency
	if len(in.Custom.ContentIDs) > 0 {
		custom.ContentIDs = append([]string(nil), in.Custom.ContentIDs...)
	}

	return &models.TrackedEvent{
		EventName:      in.EventName,
		EventTime:      b.now().Unix(),
		EventSourceURL: in.SourceURL,
		EventID:        in.EventID,
		ActionSource:   models.ActionSourceWebsite,
		UserData: models.HashedUserData{
			Em:              hashing.SHA256(in.User.Email),
			Ph:              hashing.SHA256(in.User.Phone),
			Fn:              hashing.SHA256(in.User.FirstName),
			Ln:              hashing.SHA256(in.User.LastName),
			Zp:              hashing.SHA256(in.User.PostalCode),
			Fbc:             fbc,
			Fbp:             fbp,
			ClientIPAddress: in.ClientIP,
			ClientUserAgent: in.UserAgent,
		},
		CustomData: custom,
	}, nil
}
