package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/smartcharging/core/model"
)

// Fixture is a set of sessions and profiles installed before a one-shot
// calculation.
type Fixture struct {
	Sessions []FixtureSession       `yaml:"sessions"`
	Profiles []model.ChargingProfile `yaml:"profiles"`
}

// FixtureSession starts a transaction on an outlet. An empty transaction id
// is generated.
type FixtureSession struct {
	EvseID        int    `yaml:"evseId"`
	TransactionID string `yaml:"transactionId"`
}

// LoadFixture reads a YAML (or JSON) fixture file.
func LoadFixture(path string) (Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, err
	}
	return ParseFixture(raw)
}

// ParseFixture decodes a fixture document. Unknown keys are rejected.
func ParseFixture(raw []byte) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Fixture{}, fmt.Errorf("fixture: %w", err)
	}
	return f, nil
}
