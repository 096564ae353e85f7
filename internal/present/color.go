// Package present holds the display heuristics for calendar events: colour
// by keyword, suppression of provider-generated entries, and the static icon
// and example tables shown by the UI.
package present

import (
	"strings"
	"unicode"
)

// Color is a display colour token.
type Color string

const (
	ColorHealth   Color = "health"
	ColorWork     Color = "work"
	ColorSocial   Color = "social"
	ColorActivity Color = "activity"
	ColorTask     Color = "task"
	ColorDefault  Color = "default"
)

var colorHex = map[Color]string{
	ColorHealth:   "#ef4444",
	ColorWork:     "#3b82f6",
	ColorSocial:   "#ec4899",
	ColorActivity: "#10b981",
	ColorTask:     "#f59e0b",
	ColorDefault:  "#6b7280",
}

// Hex returns the CSS colour for c.
func (c Color) Hex() string {
	if h, ok := colorHex[c]; ok {
		return h
	}
	return colorHex[ColorDefault]
}

type colorRule struct {
	keywords []string
	color    Color
}

// colorRules is evaluated in order and the first match wins, so a title
// matching several sets gets the earliest one.
var colorRules = []colorRule{
	{color: ColorHealth, keywords: []string{
		"médico", "medico", "doctor", "dentista", "odontólogo", "odontologo",
		"pediatra", "hospital", "clínica", "clinica", "vacuna",
		"análisis", "analisis", "terapia", "kinesiólogo", "kinesiologo", "farmacia",
	}},
	{color: ColorWork, keywords: []string{
		"reunión", "reunion", "trabajo", "oficina", "proyecto", "cliente",
		"clase", "escuela", "colegio", "facultad", "examen", "estudiar", "curso",
	}},
	{color: ColorSocial, keywords: []string{
		"cena", "almuerzo", "desayuno", "cumpleaños", "cumple", "fiesta",
		"amigos", "visita", "café", "cafe", "asado", "familia",
	}},
	{color: ColorActivity, keywords: []string{
		"danza", "baile", "atletismo", "fútbol", "futbol", "natación", "natacion",
		"gimnasio", "gym", "yoga", "tenis", "deporte", "entrenamiento", "música", "musica",
	}},
	{color: ColorTask, keywords: []string{
		"llevar", "retirar", "buscar", "comprar", "pagar", "trámite", "tramite",
		"entregar", "llamar", "enviar",
	}},
}

// ColorOf maps an event title to a colour token. Keywords match whole words,
// and a plural ending ("clases", "reuniones") matches its singular keyword.
func ColorOf(title string) Color {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range colorRules {
		for _, kw := range rule.keywords {
			for _, w := range words {
				if matchesKeyword(w, kw) {
					return rule.color
				}
			}
		}
	}
	return ColorDefault
}

func matchesKeyword(word, kw string) bool {
	if word == kw {
		return true
	}
	if s, ok := strings.CutSuffix(word, "es"); ok && s == kw {
		return true
	}
	if s, ok := strings.CutSuffix(word, "s"); ok && s == kw {
		return true
	}
	return false
}
