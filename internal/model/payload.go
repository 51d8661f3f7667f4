package model

import (
	"bytes"
	"encoding/json"
)

// Payload holds the domain fields of a quick check. Well-known fields are
// typed; anything else the server sends survives round trips in Extra.
type Payload struct {
	// Vehicle identity
	VIN   string `json:"vin,omitempty"`
	Year  string `json:"year,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`

	// Technician-entered fields
	Mileage          string `json:"mileage,omitempty"`
	OilLife          string `json:"oil_life,omitempty"`
	WasherFluid      string `json:"washer_fluid,omitempty"`
	BatteryCondition string `json:"battery_condition,omitempty"`
	TreadDepth       string `json:"tread_depth,omitempty"`

	// Photo attachments (URLs or object keys)
	OdometerPhotos []string `json:"odometer_photos,omitempty"`
	DashPhotos     []string `json:"dash_photos,omitempty"`

	// Per-section timing in seconds
	Durations map[string]float64 `json:"durations,omitempty"`

	// Extra carries fields the server sends that we do not model.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownPayloadKeys must match the json tags of the typed fields above.
var knownPayloadKeys = []string{
	"vin", "year", "make", "model",
	"mileage", "oil_life", "washer_fluid", "battery_condition", "tread_depth",
	"odometer_photos", "dash_photos", "durations",
}

// materialKeys is the allow-list of technician-entered fields whose change
// marks an update as material. Vehicle identity and server metadata churn
// do not qualify.
var materialKeys = []string{
	"mileage", "oil_life", "washer_fluid", "battery_condition", "tread_depth",
	"odometer_photos", "dash_photos", "durations",
}

// MarshalJSON emits typed fields plus any Extra keys.
func (p Payload) MarshalJSON() ([]byte, error) {
	type alias Payload
	b, err := json.Marshal(alias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return b, nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes typed fields and captures unknown keys into Extra.
func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for _, k := range knownPayloadKeys {
		delete(m, k)
	}
	if len(m) > 0 {
		a.Extra = m
	}

	*p = Payload(a)
	return nil
}

// toMap renders the payload as a key → raw JSON map in canonical form
// (every value has passed through json.Marshal of the typed struct).
func (p Payload) toMap() (map[string]json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Merge overlays a partial patch onto the payload. Patch keys win
// field-by-field; keys absent from the patch are preserved.
func (p Payload) Merge(patch map[string]json.RawMessage) (Payload, error) {
	base, err := p.toMap()
	if err != nil {
		return Payload{}, err
	}
	for k, v := range patch {
		base[k] = v
	}

	b, err := json.Marshal(base)
	if err != nil {
		return Payload{}, err
	}
	var merged Payload
	if err := json.Unmarshal(b, &merged); err != nil {
		return Payload{}, err
	}
	return merged, nil
}

// MaterialChange reports whether any allow-listed technician-entered field
// differs between the two payloads. Array-typed fields are compared by
// serialized content, so a re-fetched but identical photo list does not
// count as a change.
func MaterialChange(old, updated Payload) bool {
	om, err := old.toMap()
	if err != nil {
		return false
	}
	nm, err := updated.toMap()
	if err != nil {
		return false
	}

	for _, k := range materialKeys {
		if !bytes.Equal(om[k], nm[k]) {
			return true
		}
	}
	return false
}
