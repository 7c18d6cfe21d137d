package textproc

import "regexp"

// TriggerAction is the outcome of checking an utterance for the
// translation trigger and stop phrases.
type TriggerAction int

const (
	// ActionNone means no phrase matched; the utterance is dispatched.
	ActionNone TriggerAction = iota
	// ActionActivate turns translation mode on.
	ActionActivate
	// ActionDeactivate turns translation mode off.
	ActionDeactivate
	// ActionNoChange means the trigger phrase matched while the mode
	// was already active: the utterance is consumed, but no mode
	// transition happens and no mode-changed event should be emitted.
	ActionNoChange
)

// CheckTriggers looks for the trigger and stop phrases in an English
// utterance. Matching is case-insensitive whole-phrase containment on
// word boundaries. The trigger phrase is evaluated first and wins when
// both phrases appear. The stop phrase only matches while the mode is
// active; a stopped mode lets such an utterance through untouched.
func CheckTriggers(text, lang, trigger, stop string, active bool) TriggerAction {
	if lang != "en" {
		return ActionNone
	}

	if containsPhrase(text, trigger) {
		if active {
			return ActionNoChange
		}
		return ActionActivate
	}

	if active && containsPhrase(text, stop) {
		return ActionDeactivate
	}

	return ActionNone
}

func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
