package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FactRecord is the zoning fact record extracted from retrieved code text.
// A zero-valued field means "not found in retrieved context", never zero.
type FactRecord struct {
	ZoningDistrict   Text     `json:"zoning_district,omitzero" jsonschema:"required" jsonschema_description:"Primary zoning district code"`
	DistrictName     Text     `json:"district_name,omitzero" jsonschema_description:"Full name of zoning district"`
	OverlayDistricts TextList `json:"overlay_districts,omitempty" jsonschema_description:"Any overlay districts"`

	MaxHeightFt     Measure `json:"max_height_ft,omitzero" jsonschema_description:"Maximum building height in feet"`
	MaxStories      Measure `json:"max_stories,omitzero" jsonschema_description:"Maximum number of stories"`
	FrontSetbackFt  Measure `json:"front_setback_ft,omitzero" jsonschema_description:"Front yard setback requirement"`
	SideSetbackFt   Measure `json:"side_setback_ft,omitzero" jsonschema_description:"Side yard setback requirement"`
	RearSetbackFt   Measure `json:"rear_setback_ft,omitzero" jsonschema_description:"Rear yard setback requirement"`
	LotCoverageMax  Measure `json:"lot_coverage_max,omitzero" jsonschema_description:"Maximum lot coverage percentage"`
	FloorAreaRatio  Measure `json:"floor_area_ratio,omitzero" jsonschema_description:"Maximum floor area ratio (FAR)"`
	ParkingRatio    Text    `json:"parking_ratio,omitzero" jsonschema_description:"Parking spaces required per unit/use"`
	ParkingLocation Text    `json:"parking_location,omitzero" jsonschema_description:"Where parking can be located"`

	PermittedUses   TextList `json:"permitted_uses,omitempty" jsonschema_description:"Uses permitted by right"`
	ConditionalUses TextList `json:"conditional_uses,omitempty" jsonschema_description:"Uses requiring special permits"`
	ProhibitedUses  TextList `json:"prohibited_uses,omitempty" jsonschema_description:"Uses not allowed"`

	DesignStandards         TextList `json:"design_standards,omitempty" jsonschema_description:"Architectural or design requirements"`
	LandscapingRequirements Text     `json:"landscaping_requirements,omitzero" jsonschema_description:"Landscaping and green space requirements"`
	SignageRestrictions     Text     `json:"signage_restrictions,omitzero" jsonschema_description:"Signage limitations"`

	RequiredPermits       TextList `json:"required_permits,omitempty" jsonschema_description:"Permits required for development"`
	ApprovalTimeline      Text     `json:"approval_timeline,omitzero" jsonschema_description:"Typical approval timeline"`
	PublicHearingRequired Flag     `json:"public_hearing_required,omitzero" jsonschema_description:"Whether public hearing is required"`

	DevelopmentFees            Text     `json:"development_fees,omitzero" jsonschema_description:"Estimated development fees"`
	InfrastructureRequirements TextList `json:"infrastructure_requirements,omitempty" jsonschema_description:"Required off-site improvements"`

	VariancePotential     Text     `json:"variance_potential,omitzero" jsonschema_description:"Potential for zoning variances"`
	RezoningOptions       TextList `json:"rezoning_options,omitempty" jsonschema_description:"Alternative zoning districts to consider"`
	DevelopmentChallenges TextList `json:"development_challenges,omitempty" jsonschema_description:"Potential development obstacles"`
}

// FactEntry is one present field of a FactRecord rendered as text.
type FactEntry struct {
	Name  string
	Value string
}

// Entries lists the present fields in schema order.
func (r FactRecord) Entries() []FactEntry {
	var out []FactEntry
	addText := func(name string, v Text) {
		if s, ok := v.Get(); ok {
			out = append(out, FactEntry{Name: name, Value: s})
		}
	}
	addMeasure := func(name string, v Measure) {
		if !v.IsZero() {
			out = append(out, FactEntry{Name: name, Value: v.String()})
		}
	}
	addList := func(name string, v TextList) {
		if len(v) > 0 {
			out = append(out, FactEntry{Name: name, Value: strings.Join(v, ", ")})
		}
	}

	addText("zoning_district", r.ZoningDistrict)
	addText("district_name", r.DistrictName)
	addList("overlay_districts", r.OverlayDistricts)
	addMeasure("max_height_ft", r.MaxHeightFt)
	addMeasure("max_stories", r.MaxStories)
	addMeasure("front_setback_ft", r.FrontSetbackFt)
	addMeasure("side_setback_ft", r.SideSetbackFt)
	addMeasure("rear_setback_ft", r.RearSetbackFt)
	addMeasure("lot_coverage_max", r.LotCoverageMax)
	addMeasure("floor_area_ratio", r.FloorAreaRatio)
	addText("parking_ratio", r.ParkingRatio)
	addText("parking_location", r.ParkingLocation)
	addList("permitted_uses", r.PermittedUses)
	addList("conditional_uses", r.ConditionalUses)
	addList("prohibited_uses", r.ProhibitedUses)
	addList("design_standards", r.DesignStandards)
	addText("landscaping_requirements", r.LandscapingRequirements)
	addText("signage_restrictions", r.SignageRestrictions)
	addList("required_permits", r.RequiredPermits)
	addText("approval_timeline", r.ApprovalTimeline)
	if v, ok := r.PublicHearingRequired.Get(); ok {
		out = append(out, FactEntry{Name: "public_hearing_required", Value: strconv.FormatBool(v)})
	}
	addText("development_fees", r.DevelopmentFees)
	addList("infrastructure_requirements", r.InfrastructureRequirements)
	addText("variance_potential", r.VariancePotential)
	addList("rezoning_options", r.RezoningOptions)
	addList("development_challenges", r.DevelopmentChallenges)
	return out
}

// Measure holds a fact value meant for arithmetic exactly as the model
// emitted it: a JSON number or free text such as "10 ft".
type Measure struct {
	number *float64
	text   string
	set    bool
}

func NumberMeasure(v float64) Measure {
	return Measure{number: &v, set: true}
}

func TextMeasure(s string) Measure {
	return Measure{text: s, set: true}
}

func (m Measure) IsZero() bool { return !m.set }

// Raw returns a float64, a string, or nil when the value is absent.
func (m Measure) Raw() any {
	switch {
	case !m.set:
		return nil
	case m.number != nil:
		return *m.number
	default:
		return m.text
	}
}

func (m Measure) String() string {
	switch v := m.Raw().(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return ""
	}
}

func (m Measure) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Raw())
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isJSONNull(data) {
		*m = Measure{}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*m = NumberMeasure(n)
		return nil
	}
	if s, ok := scalarText(data); ok {
		*m = TextMeasure(s)
		return nil
	}
	return fmt.Errorf("decode measure: unsupported value %s", snippet(data))
}

// Text is an optional free-text fact.
type Text struct {
	value string
	set   bool
}

func NewText(s string) Text {
	return Text{value: s, set: true}
}

func (t Text) IsZero() bool { return !t.set }

func (t Text) Get() (string, bool) { return t.value, t.set }

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.set {
		return []byte("null"), nil
	}
	return json.Marshal(t.value)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isJSONNull(data) {
		*t = Text{}
		return nil
	}
	if s, ok := scalarText(data); ok {
		*t = NewText(s)
		return nil
	}
	var items TextList
	if err := items.UnmarshalJSON(data); err == nil {
		*t = NewText(strings.Join(items, "; "))
		return nil
	}
	return fmt.Errorf("decode text: unsupported value %s", snippet(data))
}

// TextList is an optional list fact. A single string is accepted as a
// one-element list.
type TextList []string

func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isJSONNull(data) {
		*l = nil
		return nil
	}
	if s, ok := scalarText(data); ok {
		if strings.TrimSpace(s) == "" {
			*l = nil
			return nil
		}
		*l = TextList{s}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode text list: unsupported value %s", snippet(data))
	}
	out := make(TextList, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if isJSONNull(item) {
			continue
		}
		s, ok := scalarText(item)
		if !ok {
			return fmt.Errorf("decode text list: unsupported item %s", snippet(item))
		}
		out = append(out, s)
	}
	*l = out
	return nil
}

// Flag is an optional yes/no fact.
type Flag struct {
	value bool
	set   bool
}

func NewFlag(v bool) Flag {
	return Flag{value: v, set: true}
}

func (f Flag) IsZero() bool { return !f.set }

func (f Flag) Get() (bool, bool) { return f.value, f.set }

func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if isJSONNull(data) {
		*f = Flag{}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = NewFlag(b)
		return nil
	}
	s, ok := scalarText(data)
	if !ok {
		return fmt.Errorf("decode flag: unsupported value %s", snippet(data))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "required", "y":
		*f = NewFlag(true)
	case "false", "no", "not required", "n":
		*f = NewFlag(false)
	default:
		*f = Flag{}
	}
	return nil
}

func isJSONNull(data []byte) bool {
	return len(data) == 0 || string(data) == "null"
}

// scalarText renders a JSON string, number or bool as text.
func scalarText(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", false
	}
	switch typed := v.(type) {
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return "", false
	}
}

func snippet(data []byte) string {
	const max = 40
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
