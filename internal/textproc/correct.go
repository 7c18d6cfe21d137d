// Package textproc post-processes transcripts: Chinese autocorrection
// and trigger-phrase detection for translation mode.
package textproc

import "strings"

// Correction records one applied replacement. Position is the rune
// offset of the original span in the input text.
type Correction struct {
	Original    string
	Replacement string
	Position    int
}

// rule is one ordered confusion-pair entry.
type rule struct {
	from string
	to   string
}

// defaultRules covers common Mandarin miswritings seen in speech
// transcripts. Ordered; earlier rules are applied first.
var defaultRules = []rule{
	{"帐号", "账号"},
	{"其它", "其他"},
	{"做为", "作为"},
	{"既使", "即使"},
	{"按装", "安装"},
	{"甚致", "甚至"},
	{"迫不急待", "迫不及待"},
	{"一如继往", "一如既往"},
	{"再接再励", "再接再厉"},
	{"走头无路", "走投无路"},
}

// Corrector applies language-conditional text correction.
type Corrector struct {
	rules []rule
}

// NewCorrector returns a Corrector with the built-in confusion table.
func NewCorrector() *Corrector {
	return &Corrector{rules: defaultRules}
}

// Correct applies the confusion table to text. It is the identity
// function unless lang is "zh" and enabled is true.
func (c *Corrector) Correct(text, lang string, enabled bool) (string, []Correction) {
	if lang != "zh" || !enabled {
		return text, nil
	}

	var corrections []Correction
	for _, r := range c.rules {
		for {
			idx := strings.Index(text, r.from)
			if idx < 0 {
				break
			}
			corrections = append(corrections, Correction{
				Original:    r.from,
				Replacement: r.to,
				Position:    len([]rune(text[:idx])),
			})
			text = text[:idx] + r.to + text[idx+len(r.from):]
		}
	}

	return text, corrections
}
