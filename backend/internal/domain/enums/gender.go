package enums

import "strings"

type GenderClass string

const (
	GenderFemale GenderClass = "female"
	GenderMale   GenderClass = "male"
)

func ParseGenderClass(raw string) (GenderClass, bool) {
	switch GenderClass(strings.ToLower(strings.TrimSpace(raw))) {
	case GenderFemale:
		return GenderFemale, true
	case GenderMale:
		return GenderMale, true
	default:
		return "", false
	}
}
