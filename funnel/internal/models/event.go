package models

// EventName identifies the funnel stage an event reports.
type EventName string

const (
	EventLead        EventName = "Lead"
	EventViewContent EventName = "ViewContent"
	EventAddToCart   EventName = "AddToCart"
	EventPurchase    EventName = "Purchase"
)

// Valid reports whether e belongs to the fixed vocabulary.
func (e EventName) Valid() bool {
	switch e {
	case EventLead, EventViewContent, EventAddToCart, EventPurchase:
		return true
	}
	return false
}

func (e EventName) String() string { return string(e) }

// ActionSourceWebsite is the only action source the funnel reports.
const ActionSourceWebsite = "website"

// UserData is the raw PII collected by the funnel. Any field may be empty.
type UserData struct {
	Email      string
	Phone      string
	FirstName  string
	LastName   string
	PostalCode string
}

// HashedUserData is UserData with every PII field digested. Correlation
// cookies and network metadata pass through untouched.
type HashedUserData struct {
	Em              string `json:"em"`
	Ph              string `json:"ph"`
	Fn              string `json:"fn"`
	Ln              string `json:"ln"`
	Zp              string `json:"zp"`
	Fbc             string `json:"fbc,omitempty"`
	Fbp             string `json:"fbp,omitempty"`
	ClientIPAddress string `json:"client_ip_address"`
	ClientUserAgent string `json:"client_user_agent"`
}

// CustomData carries the event-specific attributes. Currency is always set.
type CustomData struct {
	ContentName     string   `json:"content_name"`
	ContentCategory string   `json:"content_category,omitempty"`
	ContentIDs      []string `json:"content_ids,omitempty"`
	ContentType     string   `json:"content_type,omitempty"`
	Value           float64  `json:"value"`
	Currency        string   `json:"currency"`
	UTMSource       string   `json:"utm_source,omitempty"`
	UTMMedium       string   `json:"utm_medium,omitempty"`
	UTMCampaign     string   `json:"utm_campaign,omitempty"`
}

// TrackedEvent is the server-side event record in Events API wire shape.
type TrackedEvent struct {
	EventName      EventName      `json:"event_name"`
	EventTime      int64          `json:"event_time"`
	EventSourceURL string         `json:"event_source_url"`
	EventID        string         `json:"event_id"`
	ActionSource   string         `json:"action_source"`
	UserData       HashedUserData `json:"user_data"`
	CustomData     CustomData     `json:"custom_data"`
}

// UTM holds the campaign parameters captured when a session starts.
type UTM struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
}

// Apply copies the campaign parameters onto custom data.
func (u UTM) Apply(cd *CustomData) {
	cd.UTMSource = u.Source
	cd.UTMMedium = u.Medium
	cd.UTMCampaign = u.Campaign
}
