package utils

// Minimal server-side i18n for fixed keys. The questionnaire itself ships
// with Italian copy; only user-facing redemption errors and a couple of
// status strings live here.

var translations = map[string]map[string]string{
	"it": {
		"health.ok":       "ok",
		"fields.required": "Compila tutti i campi",
		"code.invalid":    "Il codice seriale non è valido. Contatta il referente.",
		"code.used":       "Questo codice seriale è già stato utilizzato.",
	},
	"en": {
		"health.ok":       "ok",
		"fields.required": "Please fill in all fields",
		"code.invalid":    "The serial code is not valid. Contact your referent.",
		"code.used":       "This serial code has already been used.",
	},
}

// T returns the translated string for key in locale; falls back to Italian.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := translations["it"][key]; ok {
		return v
	}
	return key
}
