package models

const (
	SettingHeaderText    = "headerText"
	SettingSubheaderText = "subheaderText"

	DefaultHeaderText    = "DAILY PK 55 REPORT AND ALL KHABAR"
	DefaultSubheaderText = "Stay Updated with the Latest News"
)

type UpdateSettingsRequest struct {
	HeaderText    string `json:"headerText" validate:"max=500"`
	SubheaderText string `json:"subheaderText" validate:"max=500"`
}

// WithSettingDefaults fills the recognized keys that are missing or empty.
func WithSettingDefaults(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings)+2)
	for k, v := range settings {
		out[k] = v
	}
	if out[SettingHeaderText] == "" {
		out[SettingHeaderText] = DefaultHeaderText
	}
	if out[SettingSubheaderText] == "" {
		out[SettingSubheaderText] = DefaultSubheaderText
	}
	return out
}
