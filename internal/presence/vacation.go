package presence

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// VacationVocab is the matching vocabulary for the out-of-office heuristic.
// Shortcodes are compared exactly (case-insensitive); words are matched as
// substrings of the status text and emoji alt-text.
type VacationVocab struct {
	Shortcodes []string `yaml:"shortcodes"`
	Words      []string `yaml:"words"`
}

// DefaultVacationVocab covers the emoji and wordings our workspaces
// actually use. It is a heuristic and may false-negative; extend it via
// LoadVacationVocab for other locales.
func DefaultVacationVocab() VacationVocab {
	return VacationVocab{
		Shortcodes: []string{":palm_tree:", ":desert_island:"},
		Words: []string{
			"vacation",
			"out of office",
			"ooo",
			"palm tree",
			"tatil", // tr
			"izin",  // tr
		},
	}
}

// LoadVacationVocab reads a YAML vocabulary file and appends its entries
// to the defaults, so a partial file never loses the built-in matches.
func LoadVacationVocab(path string) (VacationVocab, error) {
	vocab := DefaultVacationVocab()
	data, err := os.ReadFile(path)
	if err != nil {
		return vocab, fmt.Errorf("reading vacation vocab: %w", err)
	}
	var extra VacationVocab
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return vocab, fmt.Errorf("parsing vacation vocab: %w", err)
	}
	vocab.Shortcodes = append(vocab.Shortcodes, extra.Shortcodes...)
	vocab.Words = append(vocab.Words, extra.Words...)
	return vocab, nil
}

// Match reports whether the entity's custom status looks like vacation or
// out-of-office. Empty fields simply don't match; it never panics.
func (v VacationVocab) Match(e Entity) bool {
	if code := strings.ToLower(strings.TrimSpace(e.StatusEmoji)); code != "" {
		for _, want := range v.Shortcodes {
			if code == strings.ToLower(want) {
				return true
			}
		}
	}
	for _, text := range []string{e.StatusText, e.StatusEmojiAlt} {
		lower := strings.ToLower(text)
		if lower == "" {
			continue
		}
		for _, w := range v.Words {
			if strings.Contains(lower, strings.ToLower(w)) {
				return true
			}
		}
	}
	return false
}

// IsVacation applies the default vocabulary.
func IsVacation(e Entity) bool {
	return DefaultVacationVocab().Match(e)
}

// RecordEntity projects a record's custom-status fields back into an
// Entity so stored history can be classified with the same heuristic used
// for live snapshots.
func RecordEntity(rec *Record) Entity {
	if rec == nil {
		return Entity{}
	}
	return Entity{
		ID:             rec.ID,
		Name:           rec.Name,
		Avatar:         rec.Avatar,
		Status:         rec.LastStatus,
		StatusText:     rec.StatusText,
		StatusEmojiAlt: rec.StatusEmojiAlt,
		StatusEmoji:    rec.StatusEmoji,
		StatusImageRef: rec.StatusImageRef,
	}
}
