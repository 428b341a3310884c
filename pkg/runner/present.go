package runner

import (
	"errors"

	"quicktranslator/pkg/controller"
	"quicktranslator/pkg/i18n"
	"quicktranslator/pkg/provider"
)

// NoticeText renders the snapshot's notice in the interface language.
func NoticeText(s controller.Snapshot) string {
	if s.NoticeKind == controller.NoticeNone || s.Err == nil {
		return ""
	}
	switch {
	case errors.Is(s.Err, controller.ErrEmptyText):
		return i18n.T("Nothing to translate.")
	case errors.Is(s.Err, controller.ErrInvalidDirection):
		return i18n.T("Source and target language must be different.")
	case s.NoticeKind == controller.NoticeWarning:
		// cancellation is the only other warning
		return i18n.T("Translation cancelled.")
	case errors.Is(s.Err, provider.ErrUnsupportedLanguage):
		// name the pair the failed request was sent with, not the current one
		d := s.Direction
		if s.LastRequest != nil {
			d = s.LastRequest.Direction
		}
		return i18n.T("Unsupported language: %s", d.String())
	}
	return i18n.T("Translation failed: %s", s.Notice)
}

// ToggleLabel is the caption of the direction toggle. It shows the code that
// is currently the translation target.
func ToggleLabel(s controller.Snapshot) string {
	return i18n.T("Switch language (%s)", s.Direction.Target)
}

// DirectionLabel shows the current pair, e.g. "en → zh".
func DirectionLabel(s controller.Snapshot) string {
	return i18n.T("%s → %s", s.Direction.Source, s.Direction.Target)
}
