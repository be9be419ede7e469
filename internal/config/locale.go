package config

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
)

// Locale carries the language-dependent rendering surface: the slot template,
// localized weekday names and the outbound mail templates. Everything has a
// built-in default so the file is optional; a file overrides field by field.
type Locale struct {
	Language     string            `toml:"language"`
	SlotTemplate string            `toml:"slot_template"`
	TrainingWord string            `toml:"training_word"`
	Weekdays     map[string]string `toml:"weekdays"`

	OfferSubjectPrefix  string `toml:"offer_subject_prefix"`
	OfferBody           string `toml:"offer_body"`
	ConfirmationSubject string `toml:"confirmation_subject"`
	ConfirmationBody    string `toml:"confirmation_body"`
}

const defaultOfferBody = `Dear {{.Name}},

Thank you for reaching out to us. This is an automated response confirming that we have received your email.
Below are the currently available sessions - reply with the one that suits you and we will book it for you.

{{.Offers}}

Best Regards`

const defaultConfirmationBody = `Dear {{.Name}},

This is a confirmation of scheduling your {{.Training}}: {{.Slot}}.
Can't wait to see you there!

Best Regards`

// DefaultLocale returns the built-in Polish locale.
func DefaultLocale() Locale {
	return Locale{
		Language:     "polski",
		SlotTemplate: "{date} ({weekday}) at {time} in {location}",
		TrainingWord: "trening",
		Weekdays: map[string]string{
			"monday":    "poniedziałek",
			"tuesday":   "wtorek",
			"wednesday": "środa",
			"thursday":  "czwartek",
			"friday":    "piątek",
			"saturday":  "sobota",
			"sunday":    "niedziela",
		},
		OfferSubjectPrefix:  "RE:",
		OfferBody:           defaultOfferBody,
		ConfirmationSubject: "Confirmation - {{.Training}}",
		ConfirmationBody:    defaultConfirmationBody,
	}
}

// MailVars are the values available to the outbound mail templates.
type MailVars struct {
	Name     string
	Offers   string
	Training string
	Slot     string
}

// RenderOfferBody fills the offer template for one recipient.
func (l Locale) RenderOfferBody(name, offers string) (string, error) {
	return renderTemplate("offer_body", l.OfferBody, MailVars{
		Name:     name,
		Offers:   offers,
		Training: l.TrainingWord,
	})
}

// RenderConfirmation fills the confirmation subject and body for a booked
// slot.
func (l Locale) RenderConfirmation(name, slot string) (subject, body string, err error) {
	vars := MailVars{Name: name, Slot: slot, Training: l.TrainingWord}
	subject, err = renderTemplate("confirmation_subject", l.ConfirmationSubject, vars)
	if err != nil {
		return "", "", err
	}
	body, err = renderTemplate("confirmation_body", l.ConfirmationBody, vars)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderTemplate(name, text string, vars MailVars) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("config: parse %s template: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("config: render %s template: %w", name, err)
	}
	return b.String(), nil
}

// LoadLocale reads a TOML locale file and overlays it on the defaults.
// An empty path returns the defaults unchanged.
func LoadLocale(path string) (Locale, error) {
	locale := DefaultLocale()
	if path == "" {
		return locale, nil
	}
	if _, err := os.Stat(path); err != nil {
		return locale, fmt.Errorf("config: locale file %s: %w", path, err)
	}

	var overlay Locale
	if _, err := toml.DecodeFile(path, &overlay); err != nil {
		return locale, fmt.Errorf("config: parse locale file %s: %w", path, err)
	}

	if overlay.Language != "" {
		locale.Language = overlay.Language
	}
	if overlay.SlotTemplate != "" {
		locale.SlotTemplate = overlay.SlotTemplate
	}
	if overlay.TrainingWord != "" {
		locale.TrainingWord = overlay.TrainingWord
	}
	if len(overlay.Weekdays) > 0 {
		for day, name := range overlay.Weekdays {
			locale.Weekdays[day] = name
		}
	}
	if overlay.OfferSubjectPrefix != "" {
		locale.OfferSubjectPrefix = overlay.OfferSubjectPrefix
	}
	if overlay.OfferBody != "" {
		locale.OfferBody = overlay.OfferBody
	}
	if overlay.ConfirmationSubject != "" {
		locale.ConfirmationSubject = overlay.ConfirmationSubject
	}
	if overlay.ConfirmationBody != "" {
		locale.ConfirmationBody = overlay.ConfirmationBody
	}
	return locale, nil
}
