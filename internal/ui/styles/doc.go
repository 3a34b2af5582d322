// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling for the adkchat terminal UI.

All colors are Lip Gloss AdaptiveColor values and switch between light and
dark variants with the terminal background.

# Color System (colors.go)

  - Violet - Primary accent, assistant bubbles and title
  - Sky - User bubbles and key hints
  - Green, Yellow, Red - Connected, Connecting, Disconnected

Status helpers (RenderSuccess, RenderError, RenderWarning, RenderInfo) pair
each color with an ASCII marker so state is readable without color.

# Theme System (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme) // "dark", "light" or "auto"
	theme.SetSize(width, height)
	if theme.GetLayoutMode() == styles.LayoutNarrow {
		// drop secondary header fields
	}
*/
package styles
