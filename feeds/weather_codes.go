package feeds

import "newtab/models"

type weatherCode struct {
	zh   string
	en   string
	icon string
}

// WMO weather interpretation codes as used by open-meteo
var weatherCodes = map[int]weatherCode{
	0:  {"晴朗", "Clear sky", "☀️"},
	1:  {"晴间多云", "Mainly clear", "🌤️"},
	2:  {"多云", "Partly cloudy", "⛅"},
	3:  {"阴天", "Overcast", "☁️"},
	45: {"雾", "Fog", "🌫️"},
	48: {"雾凇", "Rime fog", "🌫️"},
	51: {"毛毛雨", "Light drizzle", "🌦️"},
	53: {"中雨", "Drizzle", "🌧️"},
	55: {"大雨", "Dense drizzle", "🌧️"},
	61: {"小雨", "Light rain", "🌦️"},
	63: {"中雨", "Rain", "🌧️"},
	65: {"暴雨", "Heavy rain", "⛈️"},
	71: {"小雪", "Light snow", "🌨️"},
	73: {"中雪", "Snow", "❄️"},
	75: {"大雪", "Heavy snow", "❄️"},
	95: {"雷雨", "Thunderstorm", "⛈️"},
	96: {"雷雨冰雹", "Thunderstorm with hail", "⛈️"},
	99: {"强雷暴", "Severe thunderstorm", "⛈️"},
}

// WeatherInfoFor describes a weather code in the given language
func WeatherInfoFor(code int, lang models.Language) models.WeatherInfo {
	wc, ok := weatherCodes[code]
	if !ok {
		if lang == models.LanguageEnglish {
			return models.WeatherInfo{Description: "Unknown", Icon: "❓"}
		}
		return models.WeatherInfo{Description: "未知", Icon: "❓"}
	}

	if lang == models.LanguageEnglish {
		return models.WeatherInfo{Description: wc.en, Icon: wc.icon}
	}
	return models.WeatherInfo{Description: wc.zh, Icon: wc.icon}
}
