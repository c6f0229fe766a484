package predict

import (
	"log"
	"time"

	"provincecast/internal/models"
	"provincecast/internal/openmeteo"
)

// ExtractDaily projects the provider's own multi-day forecast arrays into
// Forecast values. A missing daily block or inconsistent array lengths degrade
// to an empty result rather than an error: the caller shows no forecast rather
// than failing.
func ExtractDaily(daily openmeteo.DailyBlock) []models.Forecast {
	days := len(daily.Time)
	if days == 0 {
		log.Println("predict: provider report has no daily data")
		return nil
	}
	if len(daily.TempMax) != days || len(daily.TempMin) != days ||
		len(daily.PrecipProb) != days || len(daily.WeatherCode) != days {
		log.Println("predict: inconsistent daily array sizes in provider report")
		return nil
	}

	var forecasts []models.Forecast
	for i := 0; i < days; i++ {
		date, err := time.Parse("2006-01-02", daily.Time[i])
		if err != nil {
			log.Printf("predict: bad daily date %q: %v", daily.Time[i], err)
			return nil
		}

		fc := models.Forecast{Date: date}
		if daily.TempMax[i] != nil {
			fc.TempMax = *daily.TempMax[i]
		}
		if daily.TempMin[i] != nil {
			fc.TempMin = *daily.TempMin[i]
		}
		if daily.PrecipProb[i] != nil {
			fc.RainProbability = float64(*daily.PrecipProb[i]) / 100.0
		}
		if daily.WeatherCode[i] != nil {
			fc.WeatherCode = *daily.WeatherCode[i]
		}
		forecasts = append(forecasts, fc)
	}
	return forecasts
}
