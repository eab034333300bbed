package wolfcomm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ParameterKind discriminates what a parameter measures. It is derived from
// the unit tag of the descriptor, or from the presence of a list-items field.
type ParameterKind int

const (
	KindSimple ParameterKind = iota
	KindTemperature
	KindPressure
	KindPercentage
	KindHours
	KindPower
	KindEnergy
	KindRPM
	KindFlow
	KindFrequency
	KindListItem
)

var kindNames = map[ParameterKind]string{
	KindSimple:      "simple",
	KindTemperature: "temperature",
	KindPressure:    "pressure",
	KindPercentage:  "percentage",
	KindHours:       "hours",
	KindPower:       "power",
	KindEnergy:      "energy",
	KindRPM:         "rpm",
	KindFlow:        "flow",
	KindFrequency:   "frequency",
	KindListItem:    "list",
}

// unitKinds maps the descriptor unit tags onto kinds. A tag outside this
// table leaves the parameter simple.
var unitKinds = map[string]ParameterKind{
	unitCelsius:       KindTemperature,
	unitBar:           KindPressure,
	unitPercentage:    KindPercentage,
	unitHour:          KindHours,
	unitKilowatt:      KindPower,
	unitKilowattHours: KindEnergy,
	unitRPM:           KindRPM,
	unitFlow:          KindFlow,
	unitFrequency:     KindFrequency,
}

var kindUnits = map[ParameterKind]string{
	KindTemperature: "°C",
	KindPressure:    "bar",
	KindPercentage:  "%",
	KindHours:       "h",
	KindPower:       "kW",
	KindEnergy:      "kWh",
	KindRPM:         "rpm",
	KindFlow:        "l/min",
	KindFrequency:   "Hz",
}

func (k ParameterKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "simple"
}

// Unit returns the display unit for the kind, or "" for kinds without one.
func (k ParameterKind) Unit() string {
	return kindUnits[k]
}

// ListItem is one selectable entry of a list parameter, in the order the
// portal presents it.
type ListItem struct {
	Value       string
	DisplayText string
}

// Parameter is one node of a device's parameter tree, flattened. Kind selects
// the variant; ListItems is populated for KindListItem only. ValueID is the
// handle used to read and write the live value.
type Parameter struct {
	ValueID     int64
	Name        string
	Parent      string
	ParameterID int64
	BundleID    int64
	ReadOnly    bool
	Kind        ParameterKind
	ListItems   []ListItem
}

// Unit returns the display unit of the parameter's kind.
func (p Parameter) Unit() string {
	return p.Kind.Unit()
}

// mapParameter converts one ParameterDescriptors entry. parent is the tab the
// descriptor sits under and bundleID the bundle inherited from enclosing
// objects; the descriptor's own BundleId wins when present. Descriptors
// lacking a value id, name or parameter id map to nil and are dropped by the
// callers.
func mapParameter(desc map[string]interface{}, parent string, bundleID int64) *Parameter {
	valueID, ok := asInt64(desc[fieldValueID])
	if !ok {
		return nil
	}
	name, ok := desc[fieldName].(string)
	if !ok {
		return nil
	}
	paramID, ok := asInt64(desc[fieldParameterID])
	if !ok {
		return nil
	}

	if own, ok := asInt64(desc[fieldBundleID]); ok {
		bundleID = own
	}
	if bundleID == 0 {
		bundleID = defaultBundleID
	}

	readOnly := true
	if ro, ok := desc[fieldIsReadOnly].(bool); ok {
		readOnly = ro
	}

	p := &Parameter{
		ValueID:     valueID,
		Name:        name,
		Parent:      parent,
		ParameterID: paramID,
		BundleID:    bundleID,
		ReadOnly:    readOnly,
		Kind:        KindSimple,
	}

	// The unit tag takes precedence over list items.
	if unit, ok := desc[fieldUnit].(string); ok {
		if kind, known := unitKinds[unit]; known {
			p.Kind = kind
		}
		return p
	}
	if raw, ok := desc[fieldListItems].([]interface{}); ok {
		p.Kind = KindListItem
		p.ListItems = mapListItems(raw)
	}
	return p
}

func mapListItems(raw []interface{}) []ListItem {
	items := make([]ListItem, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		value, _ := asString(m[fieldValue])
		text, _ := m[fieldDisplayText].(string)
		items = append(items, ListItem{Value: value, DisplayText: text})
	}
	return items
}

// mapView converts one tab view into parameters. When the view carries an SVG
// heating schema, its unit table overrides the descriptor units before
// mapping.
func mapView(view map[string]interface{}) []*Parameter {
	tabName, _ := view[fieldTabName].(string)
	descriptors, _ := view[fieldParameterDescriptors].([]interface{})
	units := svgUnitOverrides(view)

	params := make([]*Parameter, 0, len(descriptors))
	for _, raw := range descriptors {
		desc, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if len(units) > 0 {
			if id, ok := asInt64(desc[fieldValueID]); ok {
				if unit, ok := units[id]; ok {
					desc[fieldUnit] = unit
				}
			}
		}
		if p := mapParameter(desc, tabName, 0); p != nil {
			params = append(params, p)
		}
	}
	return params
}

// svgUnitOverrides extracts the unit table of the first
// SVGHeatingSchemaConfigDevices block, keyed by value id. The schema block
// uses lower-case field names, unlike the descriptors.
func svgUnitOverrides(view map[string]interface{}) map[int64]string {
	devices, ok := view[fieldSVGSchemaDevices].([]interface{})
	if !ok || len(devices) == 0 {
		return nil
	}
	first, ok := devices[0].(map[string]interface{})
	if !ok {
		return nil
	}
	entries, ok := first["parameters"].([]interface{})
	if !ok {
		return nil
	}

	units := make(map[int64]string)
	for _, raw := range entries {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		unit, ok := m["unit"].(string)
		if !ok {
			continue
		}
		if id, ok := asInt64(m["valueId"]); ok {
			units[id] = unit
		}
	}
	return units
}

// boundDescriptor is a descriptor found during expert-mode traversal together
// with the bundle id inherited from its enclosing objects.
type boundDescriptor struct {
	desc     map[string]interface{}
	bundleID int64
}

// descriptorIter walks a GUI description and yields every entry of every
// ParameterDescriptors array wherever it sits in the document. An object's
// BundleId applies to the descriptors it owns and everything below it until a
// deeper object overrides it. The iterator keeps its own worklist; document
// depth never touches the goroutine stack.
type descriptorIter struct {
	stack   []iterFrame
	pending []boundDescriptor
}

type iterFrame struct {
	node     interface{}
	bundleID int64
}

func newDescriptorIter(root interface{}) *descriptorIter {
	return &descriptorIter{stack: []iterFrame{{node: root}}}
}

// Next returns the next descriptor, or ok=false once the document is
// exhausted.
func (it *descriptorIter) Next() (boundDescriptor, bool) {
	for {
		if len(it.pending) > 0 {
			d := it.pending[0]
			it.pending = it.pending[1:]
			return d, true
		}
		if len(it.stack) == 0 {
			return boundDescriptor{}, false
		}

		frame := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]

		switch node := frame.node.(type) {
		case map[string]interface{}:
			bundleID := frame.bundleID
			if own, ok := asInt64(node[fieldBundleID]); ok {
				bundleID = own
			}
			for key, child := range node {
				if key == fieldParameterDescriptors {
					if arr, ok := child.([]interface{}); ok {
						for _, raw := range arr {
							if desc, ok := raw.(map[string]interface{}); ok {
								it.pending = append(it.pending, boundDescriptor{desc: desc, bundleID: bundleID})
							}
						}
						continue
					}
				}
				it.stack = append(it.stack, iterFrame{node: child, bundleID: bundleID})
			}
		case []interface{}:
			for i := len(node) - 1; i >= 0; i-- {
				it.stack = append(it.stack, iterFrame{node: node[i], bundleID: frame.bundleID})
			}
		}
	}
}

// mapExpertParameters collects every descriptor in the document, orders them
// by value id, and maps each without a parent tab.
func mapExpertParameters(doc interface{}) []*Parameter {
	var bound []boundDescriptor
	it := newDescriptorIter(doc)
	for {
		d, ok := it.Next()
		if !ok {
			break
		}
		bound = append(bound, d)
	}

	sort.SliceStable(bound, func(i, j int) bool {
		left, _ := asInt64(bound[i].desc[fieldValueID])
		right, _ := asInt64(bound[j].desc[fieldValueID])
		return left < right
	})

	params := make([]*Parameter, 0, len(bound))
	for _, d := range bound {
		if p := mapParameter(d.desc, "", d.bundleID); p != nil {
			params = append(params, p)
		}
	}
	return params
}

// tabViews digs the tab views out of a normal-mode GUI description.
func tabViews(doc interface{}) ([]map[string]interface{}, error) {
	root, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("gui description is not an object")
	}
	menuItems, ok := root[fieldMenuItems].([]interface{})
	if !ok || len(menuItems) == 0 {
		return nil, fmt.Errorf("gui description has no menu items")
	}
	first, ok := menuItems[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("gui description has no menu items")
	}
	rawViews, ok := first[fieldTabViews].([]interface{})
	if !ok {
		return nil, fmt.Errorf("gui description has no tab views")
	}

	views := make([]map[string]interface{}, 0, len(rawViews))
	for _, raw := range rawViews {
		if view, ok := raw.(map[string]interface{}); ok {
			views = append(views, view)
		}
	}
	return views, nil
}

// flattenViews walks the views in reverse order so the portal's later
// definitions win, keeping the first occurrence of every value id.
func flattenViews(views [][]*Parameter) []Parameter {
	visited := make(map[int64]struct{})
	var flattened []Parameter
	for i := len(views) - 1; i >= 0; i-- {
		for _, p := range views[i] {
			if p == nil {
				continue
			}
			if _, found := visited[p.ValueID]; found {
				continue
			}
			visited[p.ValueID] = struct{}{}
			flattened = append(flattened, *p)
		}
	}
	return flattened
}

// dedupeParameters drops later duplicates of a value id. Applying it to an
// already deduplicated list returns the list unchanged.
func dedupeParameters(params []Parameter) []Parameter {
	visited := make(map[int64]struct{}, len(params))
	out := make([]Parameter, 0, len(params))
	for _, p := range params {
		if _, found := visited[p.ValueID]; found {
			continue
		}
		visited[p.ValueID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// displayName resolves a raw descriptor name through the localization lookup.
// Names of the form "CWL_Betriebsart Webserver" localize in two halves: the
// key of the first half is its trailing underscore segment, the second half is
// a key on its own. Everything else localizes as a whole.
func displayName(name string, localize func(string) string) string {
	parts := strings.Split(name, " ")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		first := parts[0]
		if idx := strings.LastIndex(first, "_"); idx >= 0 {
			first = first[idx+1:]
		}
		return localize(first) + " " + localize(parts[1])
	}
	return localize(name)
}

// decodeTree parses a GUI description into generic maps. Numbers decode as
// json.Number so 64-bit value ids survive.
func decodeTree(body []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode gui description: %w", err)
	}
	return doc, nil
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case float64:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	default:
		return "", false
	}
}
