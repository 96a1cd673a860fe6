package resources

import (
	"bytes"
	"testing"

	"fyne.io/fyne/v2/theme"
)

func TestAppIconResourcePerVariant(t *testing.T) {
	dark := AppIconResource(theme.VariantDark)
	light := AppIconResource(theme.VariantLight)

	if dark.Name() == light.Name() {
		t.Fatalf("expected distinct icons per variant, both are %q", dark.Name())
	}
	for _, res := range []interface{ Content() []byte }{dark, light} {
		if !bytes.Contains(res.Content(), []byte("<svg")) {
			t.Fatalf("expected embedded svg content")
		}
	}
	if got := AppIconResource(99); got.Name() != dark.Name() {
		t.Fatalf("unknown variant: got %q want %q", got.Name(), dark.Name())
	}
}
