package pipeline

import "testing"

func TestExtractEquipment(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "code prefix", input: "[X123] - Compressor Unit", want: "Compressor Unit", wantOK: true},
		{name: "tight code prefix", input: "[A]-Pump", want: "Pump", wantOK: true},
		{name: "plain text", input: "Compressor Unit", want: "Compressor Unit", wantOK: true},
		{name: "padded plain text", input: "  Valve  ", want: "Valve", wantOK: true},
		{name: "multiline keeps first line", input: "[B] - Valve\nsecond line", want: "Valve", wantOK: true},
		{name: "hyphen without bracket", input: "Pump - 3 stage", want: "Pump - 3 stage", wantOK: true},
		{name: "sentinel", input: "Não Informado", wantOK: false},
		{name: "sentinel upper", input: "NÃO INFORMADO", wantOK: false},
		{name: "sentinel english", input: "Not Informed", wantOK: false},
		{name: "sentinel after code", input: "[0] - não informado", wantOK: false},
		{name: "empty", input: "   ", wantOK: false},
		{name: "empty remainder", input: "[A] - ", wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractEquipment(tc.input)
			if ok != tc.wantOK {
				t.Fatalf("ok=%v want %v (label %q)", ok, tc.wantOK, got)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestEquipmentExtractorCustomSentinels(t *testing.T) {
	e := NewEquipmentExtractor([]string{" N/A ", ""})
	if _, ok := e.Extract("n/a"); ok {
		t.Fatalf("custom sentinel kept")
	}
	if got, ok := e.Extract("Não informado"); !ok || got != "Não informado" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}
