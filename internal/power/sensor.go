package power

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shayc/otto/pkg/models"
)

// ErrSensorUnavailable is returned when no power information can be
// read from the host. The monitor holds the CRITICAL profile until a
// sample succeeds again.
var ErrSensorUnavailable = errors.New("power sensor unavailable")

// Sensor reads the host power state.
type Sensor interface {
	Sample() (models.PowerSample, error)
}

// SysfsSensor reads the Linux power supply class. The root is
// configurable so tests point it at a fixture directory.
type SysfsSensor struct {
	root string
}

// NewSysfsSensor creates a sensor over the given power supply directory.
func NewSysfsSensor(root string) *SysfsSensor {
	return &SysfsSensor{root: root}
}

// Sample reads the battery and AC adapter state. A host with an adapter
// but no battery reads as always on external power. A host exposing no
// usable power information fails with ErrSensorUnavailable.
func (s *SysfsSensor) Sample() (models.PowerSample, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return models.PowerSample{}, fmt.Errorf("%w: %v", ErrSensorUnavailable, err)
	}

	sample := models.PowerSample{
		BatteryPercent: models.BatteryUnknown,
		SampledAt:      time.Now(),
	}
	var sawBattery, sawAC, acOnline bool
	var status string

	for _, entry := range entries {
		dir := filepath.Join(s.root, entry.Name())
		switch supplyType(dir, entry.Name()) {
		case "Battery":
			capacity, err := readIntFile(filepath.Join(dir, "capacity"))
			if err != nil || sawBattery {
				continue
			}
			sawBattery = true
			sample.BatteryPercent = capacity
			status, _ = readStringFile(filepath.Join(dir, "status"))
		case "Mains":
			sawAC = true
			if online, err := readIntFile(filepath.Join(dir, "online")); err == nil && online == 1 {
				acOnline = true
			}
		}
	}

	if !sawBattery {
		if !sawAC {
			return models.PowerSample{}, fmt.Errorf("%w: no battery or adapter under %s", ErrSensorUnavailable, s.root)
		}
		// Adapter with no battery: a wall-powered host
		sample.OnAC = true
		return sample, nil
	}

	sample.OnAC = acOnline || chargingStatus(status)
	return sample, nil
}

// supplyType resolves a power supply entry to Battery or Mains, falling
// back to the conventional directory name prefixes when the type file
// is missing.
func supplyType(dir, name string) string {
	if t, err := readStringFile(filepath.Join(dir, "type")); err == nil {
		return t
	}
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "BAT"):
		return "Battery"
	case strings.HasPrefix(upper, "AC"), strings.HasPrefix(upper, "ADP"), upper == "MAINS":
		return "Mains"
	}
	return ""
}

// chargingStatus reports whether a battery status string implies
// external power.
func chargingStatus(status string) bool {
	switch status {
	case "Charging", "Full", "Not charging":
		return true
	default:
		return false
	}
}

func readStringFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readIntFile(path string) (int, error) {
	s, err := readStringFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	return n, nil
}
