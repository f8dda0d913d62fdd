package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/homecharge/homecharge/core/model"
)

// StatusDef is one scripted status poll. Polls past the end of the list
// repeat the last entry.
type StatusDef struct {
	State     string `yaml:"state"`
	Connected bool   `yaml:"connected"`
	PluggedIn bool   `yaml:"plugged_in"`
}

func (s StatusDef) ToModel(chargerID string) model.ChargeStatus {
	return model.ChargeStatus{
		DeviceID:  chargerID,
		Connected: s.Connected,
		PluggedIn: s.PluggedIn,
		State:     parseState(s.State),
	}
}

type Expected struct {
	Outcome  string `yaml:"outcome"`
	Attempts int    `yaml:"attempts"`
	Starts   int    `yaml:"starts"`
}

type Scenario struct {
	Name          string      `yaml:"name"`
	Description   string      `yaml:"description,omitempty"`
	Charger       string      `yaml:"charger"`
	Statuses      []StatusDef `yaml:"statuses"`
	StartResults  []string    `yaml:"start_results,omitempty"`
	PollAttempts  int         `yaml:"poll_attempts,omitempty"`
	StartAttempts int         `yaml:"start_attempts,omitempty"`
	Expected      Expected    `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func parseState(s string) model.ChargingState {
	switch s {
	case "CHARGING":
		return model.StateCharging
	case "NOT_CHARGING":
		return model.StateNotCharging
	default:
		return model.StateUnknown
	}
}
