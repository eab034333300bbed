package wolfcomm

import (
	"reflect"
	"testing"
)

func decodeObject(t *testing.T, src string) map[string]interface{} {
	t.Helper()
	doc, err := decodeTree([]byte(src))
	if err != nil {
		t.Fatalf("decodeTree failed: %v", err)
	}
	m, ok := doc.(map[string]interface{})
	if !ok {
		t.Fatalf("decoded %T, want an object", doc)
	}
	return m
}

func TestMapParameterKinds(t *testing.T) {
	tests := []struct {
		name string
		desc string
		kind ParameterKind
		unit string
	}{
		{"celsius", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Celsius"}`, KindTemperature, "°C"},
		{"bar", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Bar"}`, KindPressure, "bar"},
		{"percentage", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Percentage"}`, KindPercentage, "%"},
		{"hour", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Hour"}`, KindHours, "h"},
		{"kilowatt", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Kilowatt"}`, KindPower, "kW"},
		{"kilowatt hours", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"KilowattHours"}`, KindEnergy, "kWh"},
		{"rpm", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"RPM"}`, KindRPM, "rpm"},
		{"flow", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Flow"}`, KindFlow, "l/min"},
		{"frequency", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Frequency"}`, KindFrequency, "Hz"},
		{"unknown unit", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Lumen"}`, KindSimple, ""},
		{"unit wins over list items", `{"ValueId":1,"Name":"n","ParameterId":2,"Unit":"Lumen","ListItems":[{"Value":1,"DisplayText":"On"}]}`, KindSimple, ""},
		{"list items", `{"ValueId":1,"Name":"n","ParameterId":2,"ListItems":[{"Value":1,"DisplayText":"On"}]}`, KindListItem, ""},
		{"plain", `{"ValueId":1,"Name":"n","ParameterId":2}`, KindSimple, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mapParameter(decodeObject(t, tt.desc), "Tab", 0)
			if p == nil {
				t.Fatal("mapParameter returned nil")
			}
			if p.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", p.Kind, tt.kind)
			}
			if got := p.Unit(); got != tt.unit {
				t.Errorf("Unit() = %q, want %q", got, tt.unit)
			}
		})
	}
}

func TestMapParameterDefaults(t *testing.T) {
	p := mapParameter(decodeObject(t, `{"ValueId":7,"Name":"Status","ParameterId":8}`), "Heating", 0)
	if p == nil {
		t.Fatal("mapParameter returned nil")
	}
	if p.BundleID != defaultBundleID {
		t.Errorf("BundleID = %d, want the default %d", p.BundleID, defaultBundleID)
	}
	if !p.ReadOnly {
		t.Error("ReadOnly = false, want the default true")
	}
	if p.Parent != "Heating" {
		t.Errorf("Parent = %q, want Heating", p.Parent)
	}
	if p.ValueID != 7 || p.ParameterID != 8 || p.Name != "Status" {
		t.Errorf("unexpected parameter: %+v", p)
	}
}

func TestMapParameterOverrides(t *testing.T) {
	p := mapParameter(decodeObject(t, `{"ValueId":7,"Name":"n","ParameterId":8,"BundleId":2300,"IsReadOnly":false}`), "", 5500)
	if p == nil {
		t.Fatal("mapParameter returned nil")
	}
	if p.BundleID != 2300 {
		t.Errorf("BundleID = %d, want the descriptor's own 2300", p.BundleID)
	}
	if p.ReadOnly {
		t.Error("ReadOnly = true, want false from the descriptor")
	}

	inherited := mapParameter(decodeObject(t, `{"ValueId":7,"Name":"n","ParameterId":8}`), "", 5500)
	if inherited.BundleID != 5500 {
		t.Errorf("BundleID = %d, want the inherited 5500", inherited.BundleID)
	}
}

func TestMapParameterRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		desc string
	}{
		{"missing value id", `{"Name":"n","ParameterId":2}`},
		{"missing name", `{"ValueId":1,"ParameterId":2}`},
		{"missing parameter id", `{"ValueId":1,"Name":"n"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if p := mapParameter(decodeObject(t, tt.desc), "", 0); p != nil {
				t.Errorf("mapParameter = %+v, want nil", p)
			}
		})
	}
}

func TestMapParameterListItemOrder(t *testing.T) {
	p := mapParameter(decodeObject(t, `{
		"ValueId": 1, "Name": "n", "ParameterId": 2,
		"ListItems": [
			{"Value": 0, "DisplayText": "Auto"},
			{"Value": "2", "DisplayText": "Manual"},
			{"Value": 3, "DisplayText": "Off"}
		]
	}`), "", 0)
	if p == nil || p.Kind != KindListItem {
		t.Fatalf("expected a list parameter, got %+v", p)
	}
	want := []ListItem{{"0", "Auto"}, {"2", "Manual"}, {"3", "Off"}}
	if !reflect.DeepEqual(p.ListItems, want) {
		t.Errorf("ListItems = %+v, want %+v", p.ListItems, want)
	}
}

func TestSVGUnitOverride(t *testing.T) {
	view := decodeObject(t, `{
		"TabName": "Schema",
		"ParameterDescriptors": [
			{"ValueId": 5, "Name": "Vorlauf", "ParameterId": 6},
			{"ValueId": 7, "Name": "Anlagedruck", "ParameterId": 8}
		],
		"SVGHeatingSchemaConfigDevices": [
			{"parameters": [
				{"valueId": 5, "unit": "Celsius"},
				{"valueId": 7, "unit": "Bar"}
			]}
		]
	}`)
	params := mapView(view)
	if len(params) != 2 {
		t.Fatalf("got %d parameters, want 2", len(params))
	}
	if params[0].Kind != KindTemperature {
		t.Errorf("params[0].Kind = %v, want temperature from the schema override", params[0].Kind)
	}
	if params[1].Kind != KindPressure {
		t.Errorf("params[1].Kind = %v, want pressure from the schema override", params[1].Kind)
	}
	if params[0].Parent != "Schema" {
		t.Errorf("params[0].Parent = %q, want Schema", params[0].Parent)
	}
}

func TestFlattenViewsLaterViewsWin(t *testing.T) {
	mk := func(id int64, name string) *Parameter {
		return &Parameter{ValueID: id, Name: name}
	}
	views := [][]*Parameter{
		{mk(1, "first"), nil, mk(2, "second")},
		{mk(1, "override"), mk(5, "fifth")},
	}

	got := flattenViews(views)
	wantIDs := []int64{1, 5, 2}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d parameters, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ValueID != id {
			t.Errorf("got[%d].ValueID = %d, want %d", i, got[i].ValueID, id)
		}
	}
	if got[0].Name != "override" {
		t.Errorf("got[0].Name = %q, want the later view's %q", got[0].Name, "override")
	}
}

func TestDedupeParametersIdempotent(t *testing.T) {
	params := []Parameter{
		{ValueID: 1, Name: "kept"},
		{ValueID: 2, Name: "other"},
		{ValueID: 1, Name: "dropped"},
	}
	once := dedupeParameters(params)
	if len(once) != 2 {
		t.Fatalf("got %d parameters, want 2", len(once))
	}
	if once[0].Name != "kept" {
		t.Errorf("once[0].Name = %q, want the first occurrence", once[0].Name)
	}
	twice := dedupeParameters(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second pass changed the list: %+v vs %+v", once, twice)
	}
}

func TestExpertTraversalBundlePropagation(t *testing.T) {
	doc, err := decodeTree([]byte(`{
		"BundleId": 2100,
		"MenuItems": [
			{
				"Name": "Expert",
				"SubMenuEntries": [
					{
						"BundleId": 2200,
						"TabViews": [
							{"ParameterDescriptors": [{"ValueId": 30, "Name": "deep", "ParameterId": 3}]}
						]
					}
				],
				"ParameterDescriptors": [
					{"ValueId": 20, "Name": "mid", "ParameterId": 2},
					{"ValueId": 10, "Name": "low", "ParameterId": 1, "BundleId": 2500}
				]
			}
		]
	}`))
	if err != nil {
		t.Fatalf("decodeTree failed: %v", err)
	}

	params := mapExpertParameters(doc)
	if len(params) != 3 {
		t.Fatalf("got %d parameters, want 3", len(params))
	}
	for i, want := range []int64{10, 20, 30} {
		if params[i].ValueID != want {
			t.Errorf("params[%d].ValueID = %d, want %d (ascending order)", i, params[i].ValueID, want)
		}
		if params[i].Parent != "" {
			t.Errorf("params[%d].Parent = %q, want empty", i, params[i].Parent)
		}
	}
	if params[0].BundleID != 2500 {
		t.Errorf("value id 10 BundleID = %d, want its own 2500", params[0].BundleID)
	}
	if params[1].BundleID != 2100 {
		t.Errorf("value id 20 BundleID = %d, want 2100 inherited from the root", params[1].BundleID)
	}
	if params[2].BundleID != 2200 {
		t.Errorf("value id 30 BundleID = %d, want 2200 from the enclosing entry", params[2].BundleID)
	}
}

func TestTabViews(t *testing.T) {
	doc, err := decodeTree([]byte(`{
		"MenuItems": [
			{"TabViews": [{"TabName": "A"}, {"TabName": "B"}]},
			{"TabViews": [{"TabName": "ignored"}]}
		]
	}`))
	if err != nil {
		t.Fatalf("decodeTree failed: %v", err)
	}
	views, err := tabViews(doc)
	if err != nil {
		t.Fatalf("tabViews failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views, want 2 (only the first menu item counts)", len(views))
	}

	if _, err := tabViews(map[string]interface{}{"NoMenu": true}); err == nil {
		t.Error("expected an error for a description without menu items")
	}
}

func TestDisplayName(t *testing.T) {
	translations := map[string]string{
		"Betriebsart": "Operating mode",
		"Webserver":   "Web server",
		"Heizung":     "Heating",
	}
	lookup := func(key string) string {
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"two parts with prefix", "CWL_Betriebsart Webserver", "Operating mode Web server"},
		{"two parts without prefix", "Betriebsart Webserver", "Operating mode Web server"},
		{"single part", "Heizung", "Heating"},
		{"unknown key", "Unbekannt", "Unbekannt"},
		{"three parts resolve whole", "A B C", "A B C"},
		{"empty part keeps whole", " Webserver", " Webserver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(tt.in, lookup); got != tt.want {
				t.Errorf("displayName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
