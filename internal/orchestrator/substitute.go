package orchestrator

import (
	"strings"

	"github.com/crxforge/crxforge/internal/bundle"
)

// Placeholder tokens the test-script generator leaves in raw script text.
const (
	popupToken     = "{{POPUP_URL}}"
	optionsToken   = "{{OPTIONS_URL}}"
	sidePanelToken = "{{SIDEPANEL_URL}}"
)

// Fallback instruction strings used when the extension identity or the
// manifest page path is unknown. Scripts pass these to the AI harness as
// natural-language directions instead of concrete URLs.
const (
	popupFallback     = "open the extension popup by clicking the extension icon in the browser toolbar"
	optionsFallback   = "open the extension options page via the extension's context menu"
	sidePanelFallback = "open the extension side panel from the browser toolbar"
)

// substitutePlaceholders replaces page-URL tokens in the script with direct
// chrome-extension:// URLs when both the runtime identity and the manifest
// path are known, or with natural-language fallback instructions otherwise.
func substitutePlaceholders(script string, m *bundle.Manifest, extensionID string) string {
	script = strings.ReplaceAll(script, popupToken,
		pageURL(extensionID, m.PopupPath, popupFallback))
	script = strings.ReplaceAll(script, optionsToken,
		pageURL(extensionID, m.OptionsPath, optionsFallback))
	script = strings.ReplaceAll(script, sidePanelToken,
		pageURL(extensionID, m.SidePanelPath, sidePanelFallback))
	return script
}

func pageURL(extensionID, path, fallback string) string {
	if extensionID == "" || path == "" {
		return fallback
	}
	return "chrome-extension://" + extensionID + "/" + strings.TrimPrefix(path, "/")
}
