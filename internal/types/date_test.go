package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-02-29", want: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{in: "2024-02-29T10:30:00+02:00", want: time.Date(2024, 2, 29, 8, 30, 0, 0, time.UTC)},
		{in: " 2024-01-01 ", want: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{in: "29/02/2024", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDate(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || !got.Equal(tc.want) {
			t.Errorf("ParseDate(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestDateInOptional(t *testing.T) {
	t.Parallel()

	var body struct {
		Due   Optional[Date] `json:"dueDate"`
		Empty Optional[Date] `json:"empty"`
	}
	if err := json.Unmarshal([]byte(`{"dueDate":"2024-03-01","empty":""}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if p := body.Due.Value.Ptr(); p == nil || p.Day() != 1 {
		t.Fatalf("unexpected due date %v", p)
	}
	if !body.Empty.Set || body.Empty.Value.Ptr() != nil {
		t.Fatalf("empty string should clear the date")
	}
}
