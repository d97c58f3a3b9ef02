package pipeline

import (
	"regexp"
	"strings"
)

var reEquipmentLabel = regexp.MustCompile(`\]\s*-\s*([^\n]+)`)

// DefaultEquipmentSentinels mean "equipment not informed" in the source
// registry and never become labels.
var DefaultEquipmentSentinels = []string{"não informado", "nao informado", "not informed"}

var defaultEquipmentExtractor = NewEquipmentExtractor(DefaultEquipmentSentinels)

type EquipmentExtractor struct {
	sentinels map[string]struct{}
}

func NewEquipmentExtractor(sentinels []string) *EquipmentExtractor {
	e := &EquipmentExtractor{sentinels: map[string]struct{}{}}
	for _, s := range sentinels {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			e.sentinels[s] = struct{}{}
		}
	}
	return e
}

// Extract returns the label of a "[code] - description" cell, or the whole
// trimmed cell when it has no code prefix. ok is false for empty cells and
// sentinel values.
func (e *EquipmentExtractor) Extract(raw string) (label string, ok bool) {
	label = strings.TrimSpace(raw)
	if m := reEquipmentLabel.FindStringSubmatch(label); len(m) > 1 {
		label = strings.TrimSpace(m[1])
	}
	if label == "" {
		return "", false
	}
	if _, sentinel := e.sentinels[strings.ToLower(label)]; sentinel {
		return "", false
	}
	return label, true
}

func ExtractEquipment(raw string) (string, bool) {
	return defaultEquipmentExtractor.Extract(raw)
}
