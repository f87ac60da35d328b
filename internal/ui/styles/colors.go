// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the chat TUI.
// All colors use Lip Gloss AdaptiveColor so light and dark terminals both
// get readable output.
package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Teal - brand color, user messages, prompts
var Teal = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Violet - assistant messages, selections
var Violet = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Green - success states
var Green = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Red - errors and failure notices
var Red = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - warnings, busy notices
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// =============================================================================
// SURFACE AND TEXT COLORS
// =============================================================================

// SurfaceDim - headers and footers
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}

// Border - separators and frames
var Border = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

// TextPrimary - main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}

// TextSecondary - labels and metadata
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}

// TextMuted - hints and timestamps
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// TextInverse - text on colored backgrounds
var TextInverse = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#11111B"}
