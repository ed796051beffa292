// Package domain models country reference data and current weather for the
// country lookup service.
//
// # Data Sources
//
// Country records come from the REST Countries v3.1 "all" endpoint
// (https://restcountries.com). The service requests only the fields it
// renders: name, capital, area, population, languages, flags and latlng.
// Weather comes from the OpenWeatherMap 2.5 "weather" endpoint, and icons
// from https://openweathermap.org/img/wn/<code>@2x.png.
//
// # REST Countries Conventions
//
//	name.common  display name, e.g. "China". Matching uses its lower-cased form.
//	capital      list of capitals; the first entry is shown, some territories have none.
//	area         square kilometres, may be fractional.
//	languages    map of ISO 639-3 code to display name, e.g. {"zho": "Chinese"}.
//	latlng       [lat, lon] pair for the country centroid.
//
// # OpenWeatherMap Conventions
//
// Without a units parameter the API reports temperatures in Kelvin and wind
// speed in metres per second. Display values are derived with
// [KelvinToFahrenheit] and [MpsToMph]:
//
//	Fahrenheit = ((K - 273) * 9/5) + 32, one decimal place
//	mph        = (m/s * 3600 * 3.28084) / 5280, two decimal places
//
// The Kelvin offset is 273 rather than 273.15, so displayed temperatures run
// 0.27°F high compared with an exact conversion.
//
// # Matching
//
// A query matches a country when the lower-cased country name contains the
// lower-cased query anywhere (substring, not prefix). The number of matches
// selects the result kind:
//
//	0        NoMatch    nothing rendered
//	1        Resolved   full details plus weather
//	2..10    Ambiguous  list with per-entry show/hide
//	11+      TooMany    "Too many matches, specify another filter"
package domain
