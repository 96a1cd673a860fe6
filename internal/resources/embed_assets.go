package resources

import (
	_ "embed"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

//go:embed icon_dark.svg
var appIconDark []byte

//go:embed icon_light.svg
var appIconLight []byte

var appIconResources = map[fyne.ThemeVariant]fyne.Resource{
	theme.VariantDark:  fyne.NewStaticResource("macsniff_dark.svg", appIconDark),
	theme.VariantLight: fyne.NewStaticResource("macsniff_light.svg", appIconLight),
}

// AppIconResource is the window and notification icon for a theme variant.
// Unknown variants get the dark icon.
func AppIconResource(variant fyne.ThemeVariant) fyne.Resource {
	if res, ok := appIconResources[variant]; ok {
		return res
	}

	return appIconResources[theme.VariantDark]
}
