package kosketus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type (
	// Bank is the startup configuration mapping interactive elements to
	// assets. It is plain configuration: no sequence or trajectory state is
	// ever written back to it.
	Bank struct {
		Elements []BankElement
	}

	// BankElement names one triggerable element.
	BankElement struct {
		Name string
		Ref  string // asset reference, e.g. a sample file path
		Note byte   `yaml:",omitempty"` // MIDI note that triggers this element, 0 for none
	}
)

// UnmarshalBank parses a YAML bank.
func UnmarshalBank(data []byte) (Bank, error) {
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return Bank{}, fmt.Errorf("could not unmarshal bank: %w", err)
	}
	return bank, nil
}

// ReadBank reads and parses a YAML bank file.
func ReadBank(path string) (Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bank{}, fmt.Errorf("could not read bank file: %w", err)
	}
	return UnmarshalBank(data)
}

// ElementForNote returns the element mapped to a MIDI note, if any. When the
// bank defines no explicit note mapping at all, notes starting from 60
// (middle C) map to the elements in order.
func (b *Bank) ElementForNote(note byte) (BankElement, bool) {
	mapped := false
	for _, e := range b.Elements {
		if e.Note != 0 {
			mapped = true
			if e.Note == note {
				return e, true
			}
		}
	}
	if !mapped {
		if i := int(note) - 60; i >= 0 && i < len(b.Elements) {
			return b.Elements[i], true
		}
	}
	return BankElement{}, false
}
