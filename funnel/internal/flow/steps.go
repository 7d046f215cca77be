package flow

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/techview-systems/leadpixel-stack/common/httputil"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/validation"
)

// StepInput carries whatever the current step collects. Fields that do not
// belong to the current step are ignored.
type StepInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	PostalCode string `json:"postal_code"`
	PlanID     string `json:"plan_id"`
	Source     string `json:"source"`
	Confirm    bool   `json:"confirm"`
}

type identityStep struct {
	Name       string `json:"name" validate:"notblank,max=120"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Phone      string `json:"phone" validate:"required,phone"`
	PostalCode string `json:"postal_code" validate:"max=16"`
}

type planStep struct {
	PlanID string `json:"plan_id" validate:"required,max=64"`
}

type sourceStep struct {
	Source string `json:"source" validate:"notblank,max=64"`
}

type confirmStep struct {
	Confirm bool `json:"confirm" validate:"required"`
}

// eventSpec is what a step handler decides: which event to emit with what
// custom data, and the form as it stands after the step.
type eventSpec struct {
	name   models.EventName
	custom models.CustomData
	form   models.FormData
	plan   models.Plan
}

type stepHandler func(form models.FormData, in StepInput, plans []models.Plan) (eventSpec, error)

var handlers = map[State]stepHandler{
	CollectingIdentity:     collectIdentity,
	SelectingPlan:          selectPlan,
	StatingSource:          stateSource,
	ReviewingAndConfirming: confirm,
}

func collectIdentity(form models.FormData, in StepInput, _ []models.Plan) (eventSpec, error) {
	step := identityStep{
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.TrimSpace(in.Email),
		Phone:      strings.TrimSpace(in.Phone),
		PostalCode: strings.TrimSpace(in.PostalCode),
	}
	if err := validation.Struct(step); err != nil {
		return eventSpec{}, err
	}
	form.Name, form.Email, form.Phone, form.PostalCode = step.Name, step.Email, step.Phone, step.PostalCode
	return eventSpec{
		name:   models.EventLead,
		custom: models.CustomData{ContentName: "Lead Capture"},
		form:   form,
	}, nil
}

func selectPlan(form models.FormData, in StepInput, plans []models.Plan) (eventSpec, error) {
	step := planStep{PlanID: strings.TrimSpace(in.PlanID)}
	if err := validation.Struct(step); err != nil {
		return eventSpec{}, err
	}
	plan, ok := models.FindPlan(plans, step.PlanID)
	if !ok {
		return eventSpec{}, unknownPlan()
	}
	form.PlanID = plan.ID

	name := plan.Name
	if name == "" {
		name = "Plan Selection"
	}
	return eventSpec{
		name: models.EventViewContent,
		custom: models.CustomData{
			ContentName: name,
			ContentIDs:  []string{plan.ID},
			ContentType: "product",
			Value:       plan.Price,
		},
		form: form,
		plan: plan,
	}, nil
}

func stateSource(form models.FormData, in StepInput, _ []models.Plan) (eventSpec, error) {
	step := sourceStep{Source: strings.TrimSpace(in.Source)}
	if err := validation.Struct(step); err != nil {
		return eventSpec{}, err
	}
	form.Source = step.Source
	return eventSpec{
		name: models.EventAddToCart,
		custom: models.CustomData{
			ContentName:     "Source Selection",
			ContentCategory: step.Source,
		},
		form: form,
	}, nil
}

func confirm(form models.FormData, in StepInput, plans []models.Plan) (eventSpec, error) {
	if err := validation.Struct(confirmStep{Confirm: in.Confirm}); err != nil {
		return eventSpec{}, err
	}
	// The catalogue may have changed since the plan was picked.
	plan, ok := models.FindPlan(plans, form.PlanID)
	if !ok {
		return eventSpec{}, unknownPlan()
	}
	return eventSpec{
		name: models.EventPurchase,
		custom: models.CustomData{
			ContentName: "Purchase Confirmation",
			ContentIDs:  []string{plan.ID},
			ContentType: "product",
			Value:       plan.Price,
		},
		form: form,
		plan: plan,
	}, nil
}

func unknownPlan() error {
	return &validation.Error{Fields: []httputil.FieldError{{Field: "plan_id", Message: "is not an available plan"}}}
}

// splitName returns the first word and everything after it.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// WhatsAppURL opens a chat with the visitor's number, prefilled with the
// plan they bought. Numbers are Brazilian; the 55 country code is added
// unless the visitor already typed it.
func WhatsAppURL(phone, planName string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if len(digits) >= 12 {
		digits = strings.TrimPrefix(digits, "55")
	}
	text := url.QueryEscape("Olá, acabei de assinar o plano " + planName)
	return "https://wa.me/55" + digits + "?text=" + strings.ReplaceAll(text, "+", "%20")
}
