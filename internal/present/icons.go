package present

import "strings"

const openMojiBaseURL = "https://cdn.jsdelivr.net/npm/openmoji@13.1.0/color/svg/"

// Icon maps a shortcut name to an OpenMoji code point sequence.
type Icon struct {
	Name string
	Code string
}

var icons = []Icon{
	{"fc:businesswoman", "1F469-1F3FD-200D-1F4BC"},
	{"fc:manager", "1F9D4-1F3FB-200D-2642-FE0F"},
	{"fc:reading", "1F469-1F3FD-200D-1F3A4"},
	{"fc:sports-mode", "1F469-1F3FB-200D-1F3A8"},
	{"fc:podium-with-speaker", "1FA7A"},
	{"fc:like", "1F382"},
	{"fc:conference-call", "1F64B-1F3FC-200D-2640-FE0F"},
	{"fc:home", "1F3E0"},
	{"fc:music", "1F3B5"},
	{"fc:services", "1F3A8"},
	{"fc:customer-support", "1F9B7"},
	{"fc:contacts", "2709"},
	{"fc:package", "1F4E6"},
	{"fc:planner", "1F4C5"},
	{"fc:briefcase", "1F4BC"},
	{"fc:phone", "1F4F1"},
	{"fc:graduation-cap", "1F3EB"},
	{"fc:shop", "1F37D"},
	{"fc:gamepad", "1F3AE"},
	{"fc:microphone", "1F3A4"},
	{"fc:dancer", "1F483"},
	{"fc:artist-palette", "1F3A8"},
	{"fc:tooth", "1F9B7"},
	{"fc:person-running", "1F938-200D-2640-FE0F"},
	{"fc:handshake", "1F91D"},
}

// Icons returns a copy of the icon table in its fixed order.
func Icons() []Icon {
	out := make([]Icon, len(icons))
	copy(out, icons)
	return out
}

// IconURL returns the SVG URL for the named icon.
func IconURL(name string) (string, bool) {
	for _, ic := range icons {
		if ic.Name == name {
			return openMojiBaseURL + strings.ToUpper(ic.Code) + ".svg", true
		}
	}
	return "", false
}

// colorIcons picks an icon for each colour token.
var colorIcons = map[Color]string{
	ColorHealth:   "fc:tooth",
	ColorWork:     "fc:briefcase",
	ColorSocial:   "fc:handshake",
	ColorActivity: "fc:person-running",
	ColorTask:     "fc:package",
	ColorDefault:  "fc:planner",
}

// IconFor returns the icon name shown next to events of colour c.
func IconFor(c Color) string {
	if name, ok := colorIcons[c]; ok {
		return name
	}
	return colorIcons[ColorDefault]
}

// Examples are sample inputs offered by the UI.
var Examples = []string{
	"Llevar a Trini a Danza mañana a las 5pm",
	"Chiara tiene Atletismo el miercoles a las 16hs",
	"Cena con Fran y Gaby el sábado a las 21hs",
}

// Templates are fill-in-the-blanks inputs offered by the UI.
var Templates = []string{
	"Llevar a ... a ... el ... a las ...",
	"Retirar ... en ... el ... a las ...",
	"Visita de ... el ... a las ... en ...",
}
