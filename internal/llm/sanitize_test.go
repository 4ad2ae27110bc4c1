package llm

import (
	"testing"
)

func TestNormalizeResponseShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"array", `[{"date":"2024-01-01","inward_from":"A"},{"date":"2024-01-02","inward_from":"B"}]`, 2},
		{"single object", `{"date":"2024-01-01","inward_from":"A"}`, 1},
		{"wrapped", `{"trips":[{"date":"2024-01-01","inward_from":"A"}]}`, 1},
		{"fenced", "```json\n[{\"date\":\"2024-01-01\",\"inward_from\":\"A\"}]\n```", 1},
		{"prose", "Here you go:\n[{\"date\":\"2024-01-01\",\"inward_from\":\"A\"}]\nHope it helps", 1},
		{"empty", `[]`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, _, err := NormalizeResponse(tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != tc.want {
				t.Fatalf("expected %d items, got %d", tc.want, len(items))
			}
		})
	}
}

func TestNormalizeResponseWrapperPriority(t *testing.T) {
	raw := `{"data":[{"date":"2024-02-02","inward_from":"B"}],"trips":[{"date":"2024-01-01","inward_from":"A"}]}`
	for i := 0; i < 200; i++ {
		items, _, err := NormalizeResponse(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(items))
		}
		if got := items[0].(map[string]any)["date"]; got != "2024-01-01" {
			t.Fatalf("run %d: expected trips to win over data, got date %v", i, got)
		}
	}
}

func TestNormalizeResponseRejectsNonJSON(t *testing.T) {
	for _, raw := range []string{"no trips here", `"just a string"`, "[1, 2"} {
		if _, _, err := NormalizeResponse(raw); err == nil {
			t.Fatalf("expected an error for %q", raw)
		}
	}
}

func TestNormalizeTripFields(t *testing.T) {
	items, notes, err := NormalizeResponse(`[{
		"trip_date": " 2024-03-05 ",
		"Inward From": "Home",
		"cab_vendor": "Meru",
		"inward_charges": "₹ 1,250.00",
		"outward_charges": 300,
		"driver": "Ravi",
		"outward_to": null
	}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := items[0].(map[string]any)
	want := map[string]string{
		"date":            "2024-03-05",
		"inward_from":     "Home",
		"vendor":          "Meru",
		"inward_charges":  "1250.00",
		"outward_charges": "300",
		"visits":          "1",
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s: expected %q, got %v", k, v, m[k])
		}
	}
	if _, ok := m["driver"]; ok {
		t.Fatal("unknown key should be dropped")
	}
	if _, ok := m["outward_to"]; ok {
		t.Fatal("null should be dropped")
	}
	if len(notes) == 0 {
		t.Fatal("expected normalisation notes")
	}
}

func TestNormalizeExactKeyWinsOverSynonym(t *testing.T) {
	items, _, err := NormalizeResponse(`{"date":"2024-01-01","trip_date":"1999-01-01","inward_from":"A"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := items[0].(map[string]any)["date"]; got != "2024-01-01" {
		t.Fatalf("expected exact key to win, got %v", got)
	}
}

func TestNormalizeMoney(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"250":       "250",
		"Rs. 250/-": "250",
		"$12.5":     "12.5",
		"1,234.567": "1234.57",
		"INR 99.90": "99.90",
		"abc":       "abc",
	}
	for in, want := range cases {
		if got := normalizeMoney(in); got != want {
			t.Fatalf("normalizeMoney(%q): expected %q, got %q", in, want, got)
		}
	}
}
