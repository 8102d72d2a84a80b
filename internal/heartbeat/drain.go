package heartbeat

import "github.com/shayc/otto/pkg/models"

// estimateRuntime returns the hours of battery left at the observed
// discharge rate. It reports RuntimeUnknown on AC power, without a
// battery reading, or before two discharging samples exist.
func estimateRuntime(samples []models.PowerSample, window int, last models.PowerSample) float64 {
	if last.OnAC || last.BatteryPercent < 0 {
		return models.RuntimeUnknown
	}
	if window < 2 {
		window = 2
	}
	if len(samples) > window {
		samples = samples[len(samples)-window:]
	}

	var (
		rateSum float64
		rates   int
	)
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		if prev.BatteryPercent < 0 || cur.BatteryPercent < 0 {
			continue
		}
		hours := cur.SampledAt.Sub(prev.SampledAt).Hours()
		if hours <= 0 {
			continue
		}
		drop := prev.BatteryPercent - cur.BatteryPercent
		if drop <= 0 {
			// Charging or flat pairs say nothing about discharge.
			continue
		}
		rateSum += float64(drop) / hours
		rates++
	}
	if rates == 0 {
		return models.RuntimeUnknown
	}

	perHour := rateSum / float64(rates)
	return float64(last.BatteryPercent) / perHour
}
