package dashboard

import "time"

// HeatIndexF is the simple heat index in degrees Fahrenheit for a temperature
// in degrees Celsius and a relative humidity in percent.
func HeatIndexF(celsius, humidity float64) float64 {
	f := celsius*9/5 + 32
	return 0.5 * (f + 61 + (f-68)*1.2 + humidity*0.094)
}

func heatIndex(r Reading) *float64 {
	t, h := r.Value(Temperature), r.Value(Humidity)
	if t == nil || h == nil {
		return nil
	}
	hi := HeatIndexF(*t, *h)
	return &hi
}

// waterBreaks maps heat index ceilings in °F to the interval between water
// breaks. Anything hotter than the last ceiling gets five minutes.
var waterBreaks = []struct {
	ceiling  float64
	interval time.Duration
}{
	{80, 60 * time.Minute},
	{85, 45 * time.Minute},
	{90, 30 * time.Minute},
	{95, 15 * time.Minute},
	{100, 10 * time.Minute},
}

// WaterBreakInterval returns the recommended time between water breaks at a
// heat index in degrees Fahrenheit.
func WaterBreakInterval(heatIndexF float64) time.Duration {
	for _, wb := range waterBreaks {
		if heatIndexF <= wb.ceiling {
			return wb.interval
		}
	}
	return 5 * time.Minute
}

// waterBreakMinutes is WaterBreakInterval in whole minutes, nil without a
// heat index.
func waterBreakMinutes(heatIndexF *float64) *int {
	if heatIndexF == nil {
		return nil
	}
	m := int(WaterBreakInterval(*heatIndexF) / time.Minute)
	return &m
}
