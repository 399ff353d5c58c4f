package theme

import "testing"

func withDetector(t *testing.T, dark bool) {
	saved := detectDarkBackground
	detectDarkBackground = func() bool { return dark }
	t.Cleanup(func() {
		detectDarkBackground = saved
	})
}

func TestCurrent(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dark bool
		want Theme
	}{
		{"unset light background", "", false, CatppuccinLatte},
		{"unset dark background", "", true, CatppuccinMocha},
		{"auto light background", "auto", false, CatppuccinLatte},
		{"auto dark background", "auto", true, CatppuccinMocha},
		{"explicit latte on dark", "latte", true, CatppuccinLatte},
		{"explicit mocha on light", "mocha", false, CatppuccinMocha},
		{"dark alias", "Dark", false, CatppuccinMocha},
		{"light alias padded", " light ", true, CatppuccinLatte},
		{"unknown falls back to detection", "solarized", true, CatppuccinMocha},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PAVCORE_THEME", tt.env)
			withDetector(t, tt.dark)

			if got := Current(); got.Base != tt.want.Base {
				t.Fatalf("Current() base = %s, want %s (%s)", got.Base, tt.want.Base, tt.want.Name)
			}
		})
	}
}

func TestPalettesAreDistinct(t *testing.T) {
	if CatppuccinMocha.Success == CatppuccinLatte.Success || CatppuccinMocha.Base == CatppuccinLatte.Base {
		t.Fatal("light and dark palettes share colours")
	}
}
