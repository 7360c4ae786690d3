package validate

import (
	"testing"

	"webmcut/internal/model"
)

func TestRequireTime(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		set     bool
		wantErr bool
	}{
		{in: "", set: false},
		{in: "  ", set: false},
		{in: "12", want: 12, set: true},
		{in: "12.25", want: 12.25, set: true},
		{in: ".5", want: 0.5, set: true},
		{in: "1:30", want: 90, set: true},
		{in: "01:02:03.5", want: 3723.5, set: true},
		{in: "1:60", set: true, wantErr: true},
		{in: "1.5:00", set: true, wantErr: true},
		{in: "-3", set: true, wantErr: true},
		{in: "1e3", set: true, wantErr: true},
		{in: "1::2", set: true, wantErr: true},
		{in: "1:2:3:4", set: true, wantErr: true},
	}
	for _, tt := range tests {
		got, set, err := requireTime(tt.in)
		if (err != nil) != tt.wantErr || set != tt.set {
			t.Errorf("requireTime(%q) set=%v err=%v", tt.in, set, err)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("requireTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRequireNumbers(t *testing.T) {
	if v, set, err := requireInt(" 42 "); v != 42 || !set || err != nil {
		t.Errorf("requireInt = %v %v %v", v, set, err)
	}
	if _, set, err := requireInt("4.2"); !set || err == nil {
		t.Errorf("requireInt(4.2) should fail")
	}
	if v, set, err := requireFloat("-0.5"); v != -0.5 || !set || err != nil {
		t.Errorf("requireFloat = %v %v %v", v, set, err)
	}
	for _, bad := range []string{"NaN", "Inf", "x"} {
		if _, _, err := requireFloat(bad); err == nil {
			t.Errorf("requireFloat(%q) should fail", bad)
		}
	}
}

func TestParseCrop(t *testing.T) {
	ip := func(v int) *int { return &v }
	tests := []struct {
		in      string
		want    *model.Crop
		wantErr bool
	}{
		{in: "", want: nil},
		{in: ":::", want: nil},
		{in: "640:360", want: &model.Crop{W: 640, H: 360}},
		{in: "640:360:10:20", want: &model.Crop{W: 640, H: 360, X: ip(10), Y: ip(20)}},
		{in: "::0:", want: &model.Crop{X: ip(0)}},
		{in: "640", want: &model.Crop{W: 640}},
		{in: "a:b", wantErr: true},
		{in: "1:2:3:4:5", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseCrop(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCrop(%q) err = %v", tt.in, err)
			continue
		}
		if !cropEqual(got, tt.want) {
			t.Errorf("parseCrop(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func cropEqual(a, b *model.Crop) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.W == b.W && a.H == b.H && intPtrEqual(a.X, b.X) && intPtrEqual(a.Y, b.Y)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestParseScale(t *testing.T) {
	tests := []struct {
		in      string
		want    model.Scale
		wantErr bool
	}{
		{in: "", want: model.Scale{}},
		{in: "1280", want: model.Scale{W: 1280}},
		{in: ":720", want: model.Scale{H: 720}},
		{in: "-1:720", want: model.Scale{H: 720}},
		{in: "640:480", want: model.Scale{W: 640, H: 480}},
		{in: "-1:-1", wantErr: true},
		{in: "-5:10", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseScale(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseScale(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseScale(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
