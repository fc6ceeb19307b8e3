package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Vasteras-Stadsmission/matkassen-sub010/internal/model"
)

// Renderer produces the final message body for an intent. Message copy is an
// external collaborator; the engine only requires that the result fits in a
// single transport segment.
type Renderer interface {
	Render(intent model.MessageIntent, locale string, earliest, latest time.Time) (string, error)
}

var ErrTextTooLong = errors.New("rendered text exceeds single-segment budget")

const defaultLocale = "en"

// Single-segment limits. Texts that fit the GSM-7 alphabet get 160
// characters; anything needing UCS-2 encoding gets 70.
const (
	gsmSegmentLimit  = 160
	ucs2SegmentLimit = 70
)

type templateRenderer struct {
	templates map[string]map[model.MessageIntent]string
}

func NewTemplateRenderer() Renderer {
	return &templateRenderer{
		templates: map[string]map[model.MessageIntent]string{
			"en": {
				model.IntentPickupReminder:  "Reminder: your food parcel is ready for pickup %s. Bring your ID.",
				model.IntentPickupUpdated:   "Your food parcel pickup has moved to %s.",
				model.IntentPickupCancelled: "Your food parcel pickup %s has been cancelled. Please contact us for a new time.",
			},
			"sv": {
				model.IntentPickupReminder:  "Påminnelse: din matkasse kan hämtas %s. Ta med legitimation.",
				model.IntentPickupUpdated:   "Din matkasseutlämning har flyttats till %s.",
				model.IntentPickupCancelled: "Din matkasseutlämning %s är inställd. Kontakta oss för en ny tid.",
			},
		},
	}
}

func (r *templateRenderer) Render(intent model.MessageIntent, locale string, earliest, latest time.Time) (string, error) {
	byIntent, ok := r.templates[locale]
	if !ok {
		byIntent = r.templates[defaultLocale]
	}

	tmpl, ok := byIntent[intent]
	if !ok {
		return "", fmt.Errorf("no template for intent %q", intent)
	}

	window := fmt.Sprintf("%s %s-%s",
		earliest.Format("2/1"),
		earliest.Format("15:04"),
		latest.Format("15:04"))

	text := fmt.Sprintf(tmpl, window)

	limit := gsmSegmentLimit
	if !fitsGSM7(text) {
		limit = ucs2SegmentLimit
	}

	if len([]rune(text)) > limit {
		return "", ErrTextTooLong
	}

	return text, nil
}

const gsm7Extra = "@£$¥èéùìòÇØøÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./:;<=>?¡ÄÖÑܧ¿äöñüà\n\r^{}\\[~]|€"

func fitsGSM7(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			continue
		}
		if !strings.ContainsRune(gsm7Extra, r) {
			return false
		}
	}
	return true
}
