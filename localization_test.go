package wolfcomm

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

const sampleScript = `window.localizedText = {
	culture: "en",
	messages: {
		Betriebsart: "Operating mode",
		Heizung: "Heating",
		Warmwasser: "Hot water"
	}
}`

func TestExtractMessages(t *testing.T) {
	messages, ok := extractMessages(sampleScript)
	if !ok {
		t.Fatal("extractMessages reported no message table")
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3: %v", len(messages), messages)
	}
	if messages["Betriebsart"] != "Operating mode" {
		t.Errorf("Betriebsart = %q, want %q", messages["Betriebsart"], "Operating mode")
	}
	if messages["Warmwasser"] != "Hot water" {
		t.Errorf("Warmwasser = %q, want %q", messages["Warmwasser"], "Hot water")
	}
}

func TestExtractMessagesNoMarker(t *testing.T) {
	if _, ok := extractMessages(`window.localizedText = { culture: "en" }`); ok {
		t.Error("extractMessages reported a table in a script without one")
	}
	if _, ok := extractMessages(""); ok {
		t.Error("extractMessages reported a table in an empty blob")
	}
}

func TestRepairParseDropsOffendingLine(t *testing.T) {
	src := []byte("{\n\"Betriebsart\": \"Operating mode\",\n\"Broken\": oops,\n\"Heizung\": \"Heating\"\n}")
	messages, ok := repairParse(src)
	if !ok {
		t.Fatal("repairParse gave up")
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(messages), messages)
	}
	if messages["Betriebsart"] != "Operating mode" || messages["Heizung"] != "Heating" {
		t.Errorf("surviving messages are wrong: %v", messages)
	}
	if _, found := messages["Broken"]; found {
		t.Error("the broken line survived the repair")
	}
}

func TestRepairParseMissingComma(t *testing.T) {
	// The parser reports the line after the missing comma; that line is the
	// one that gets dropped.
	src := []byte("{\n\"Betriebsart\": \"Operating mode\"\n\"Heizung\": \"Heating\"\n}")
	messages, ok := repairParse(src)
	if !ok {
		t.Fatal("repairParse gave up")
	}
	if messages["Betriebsart"] != "Operating mode" {
		t.Errorf("Betriebsart = %q, want %q", messages["Betriebsart"], "Operating mode")
	}
	if _, found := messages["Heizung"]; found {
		t.Error("the line at the parse error should have been dropped")
	}
}

func TestRepairParseGivesUp(t *testing.T) {
	if _, ok := repairParse([]byte(`not json at all`)); ok {
		t.Error("repairParse repaired a single unusable line")
	}
	if _, ok := repairParse([]byte(`[1,2,3]`)); ok {
		t.Error("repairParse repaired an array blob")
	}
}

func TestLocalizerFallbackRegion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/js/localized-text/text.culture.en.js", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleScript)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	l := newLocalizer(func() *http.Client { return server.Client() }, zerolog.Nop())
	l.urlTemplate = server.URL + "/js/localized-text/text.culture.%s.js"

	// "de" has no resource on this server, so the base region takes over.
	l.Load("de")
	if got := l.Lookup("Heizung"); got != "Heating" {
		t.Errorf("Lookup(Heizung) = %q, want the fallback region's %q", got, "Heating")
	}
}

func TestLocalizerIdentityWithoutMapping(t *testing.T) {
	l := newLocalizer(func() *http.Client { return http.DefaultClient }, zerolog.Nop())
	if got := l.Lookup("Betriebsart"); got != "Betriebsart" {
		t.Errorf("Lookup = %q, want the key itself", got)
	}
}

func TestLocalizerUnknownKeyResolvesToItself(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/js/localized-text/text.culture.en.js", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleScript)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	l := newLocalizer(func() *http.Client { return server.Client() }, zerolog.Nop())
	l.urlTemplate = server.URL + "/js/localized-text/text.culture.%s.js"
	l.Load("en")

	if got := l.Lookup("Betriebsart"); got != "Operating mode" {
		t.Errorf("Lookup(Betriebsart) = %q, want %q", got, "Operating mode")
	}
	if got := l.Lookup("NichtVorhanden"); got != "NichtVorhanden" {
		t.Errorf("Lookup of an unknown key = %q, want the key itself", got)
	}
}
