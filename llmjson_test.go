package ragengine

import "testing"

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"fenced json block", "Sure:\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare object", `prefix {"a": 1} suffix`, `{"a": 1}`},
		{"nested objects", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"brace inside string", `{"a": "}{"}`, `{"a": "}{"}`},
		{"escaped quote inside string", `{"a": "he said \"}\""}`, `{"a": "he said \"}\""}`},
		{"no object", "there is nothing here", ""},
		{"unbalanced", `{"a": 1`, ""},
		{"empty input", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSONObject(tc.in); got != tc.want {
				t.Errorf("ExtractJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestExtractJSONObjectPrefersFencedBlock(t *testing.T) {
	in := "ignore {\"wrong\": true} and use:\n```json\n{\"right\": true}\n```"
	if got := ExtractJSONObject(in); got != `{"right": true}` {
		t.Errorf("ExtractJSONObject = %q, want the fenced object", got)
	}
}
