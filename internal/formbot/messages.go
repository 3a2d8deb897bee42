package formbot

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. English text doubles as the key; other languages are
// registered in the catalog below.
const (
	msgEnter        = "Please enter %s"
	msgSelect       = "Please select %s"
	msgSelectInline = "Please select %s (%s)"
	msgCurrent      = "Current value: %s"
	msgInvalid      = "\"%s\" is not a valid value for %s."
	msgHelp         = "Enter %s. You can also type: back, help, quit, skip, status."
	msgHelpRequired = "Enter %s. You can also type: back, help, quit, status."
	msgStatus       = "Current answers:"
	msgUnspecified  = "Unspecified"
	msgNoPreference = "No preference"
	msgNoBack       = "There is no previous field."
	msgNotOptional  = "%s is required."
	msgComplete     = "Thank you! Your answers have been recorded."
	msgAlreadyDone  = "The form is already complete."
	msgQuit         = "Form quit."

	msgHintText    = "any text"
	msgHintInteger = "a whole number"
	msgHintFloat   = "a number"
	msgHintDate    = "a date such as 1/31/2016"
	msgHintChoice  = "one of: %s"
	msgHintRange   = "%s between %s and %s"
)

var supported = []language.Tag{language.English, language.French}

var matcher = language.NewMatcher(supported)

var messages = newCatalog()

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	fr := map[string]string{
		msgEnter:        "Veuillez saisir %s",
		msgSelect:       "Veuillez sélectionner %s",
		msgSelectInline: "Veuillez sélectionner %s (%s)",
		msgCurrent:      "Valeur actuelle : %s",
		msgInvalid:      "« %s » n'est pas une valeur valide pour %s.",
		msgHelp:         "Saisissez %s. Vous pouvez aussi taper : back, help, quit, skip, status.",
		msgHelpRequired: "Saisissez %s. Vous pouvez aussi taper : back, help, quit, status.",
		msgStatus:       "Réponses actuelles :",
		msgUnspecified:  "Non spécifié",
		msgNoPreference: "Sans préférence",
		msgNoBack:       "Il n'y a pas de champ précédent.",
		msgNotOptional:  "%s est obligatoire.",
		msgComplete:     "Merci ! Vos réponses ont été enregistrées.",
		msgAlreadyDone:  "Le formulaire est déjà terminé.",
		msgQuit:         "Formulaire abandonné.",
		msgHintText:     "du texte",
		msgHintInteger:  "un nombre entier",
		msgHintFloat:    "un nombre",
		msgHintDate:     "une date comme 31/1/2016",
		msgHintChoice:   "l'une des valeurs : %s",
		msgHintRange:    "%s entre %s et %s",
	}
	for key, text := range fr {
		if err := b.SetString(language.French, key, text); err != nil {
			panic(err)
		}
	}
	return b
}

// matchLocale maps a session locale such as "en-us" or "fr-FR" to one of
// the supported languages. Unknown or empty locales fall back to English.
func matchLocale(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, idx, _ := matcher.Match(tag)
	return supported[idx]
}

func newPrinter(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}
