package geocode

import "strings"

type LookupAPIResponse struct {
	PlaceId     int              `json:"place_id"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Category    string           `json:"category"`
	Type        string           `json:"type"`
	Addresstype string           `json:"addresstype"`
	Name        string           `json:"name"`
	DisplayName string           `json:"display_name"`
	Address     NominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

type NominatimAddress struct {
	City         string `json:"city"`
	Town         string `json:"town"`
	Village      string `json:"village"`
	Hamlet       string `json:"hamlet"`
	County       string `json:"county"`
	State        string `json:"state"`
	ISO31662Lvl4 string `json:"ISO3166-2-lvl4"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
}

// Locality returns the most specific settlement name available.
func (a NominatimAddress) Locality() string {
	for _, s := range []string{a.City, a.Town, a.Village, a.Hamlet} {
		if s != "" {
			return s
		}
	}
	return ""
}

// RegionCode prefers the ISO 3166-2 subdivision suffix ("US-CO" -> "CO").
func (a NominatimAddress) RegionCode() string {
	if i := strings.LastIndex(a.ISO31662Lvl4, "-"); i >= 0 && i+1 < len(a.ISO31662Lvl4) {
		return a.ISO31662Lvl4[i+1:]
	}
	return a.State
}

// DisplayLabel is the candidate name shown in search results: "City, State"
// when both are known, otherwise Nominatim's display name.
func (r LookupAPIResponse) DisplayLabel() string {
	city := r.Address.Locality()
	if city == "" {
		city = r.Name
	}
	if city != "" && r.Address.State != "" && city != r.Address.State {
		return city + ", " + r.Address.State
	}
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return city
}
