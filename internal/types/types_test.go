package types

import (
	"encoding/json"
	"testing"
	"time"
)

var t0 = time.Date(2020, 10, 19, 13, 31, 25, 0, time.UTC)

func TestResponse(t *testing.T) {
	tests := []struct {
		name    string
		r       Response
		timeout bool
		ms      int64
		str     string
	}{
		{"ok", OK(42), false, 42, "42"},
		{"zero", OK(0), false, 0, "0"},
		{"negative clamps", OK(-5), false, 0, "0"},
		{"timeout", Timeout, true, 0, "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.r.IsTimeout() != tt.timeout {
				t.Errorf("IsTimeout() = %v, want %v", tt.r.IsTimeout(), tt.timeout)
			}
			ms, ok := tt.r.Millis()
			if ok == tt.timeout || ms != tt.ms {
				t.Errorf("Millis() = %d, %v", ms, ok)
			}
			if tt.r.String() != tt.str {
				t.Errorf("String() = %q, want %q", tt.r.String(), tt.str)
			}
		})
	}
}

func TestEndCompare(t *testing.T) {
	a, b := At(t0), At(t0.Add(time.Second))
	tests := []struct {
		name string
		x, y End
		want int
	}{
		{"bounded before bounded", a, b, -1},
		{"equal bounded", a, At(t0), 0},
		{"open after bounded", Open(), b, 1},
		{"bounded before open", b, Open(), -1},
		{"open equals open", Open(), Open(), 0},
	}
	for _, tt := range tests {
		if got := tt.x.Compare(tt.y); got != tt.want {
			t.Errorf("%s: Compare = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestIntervalCompare(t *testing.T) {
	early := Interval{Start: t0, End: At(t0.Add(time.Minute))}
	openSame := Interval{Start: t0, End: Open()}
	late := Interval{Start: t0.Add(time.Second), End: At(t0.Add(2 * time.Second))}

	if early.Compare(openSame) >= 0 {
		t.Error("bounded end should sort before open end for equal starts")
	}
	if openSame.Compare(late) >= 0 {
		t.Error("earlier start should sort first regardless of end")
	}
	if !early.Equal(Interval{Start: t0, End: At(t0.Add(time.Minute))}) {
		t.Error("expected equal intervals")
	}
}

func TestIntervalString(t *testing.T) {
	iv := Interval{Start: t0, End: At(t0.Add(time.Minute))}
	if got, want := iv.String(), "2020-10-19 13:31:25 ~ 2020-10-19 13:32:25"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	iv.End = Open()
	if got, want := iv.String(), "2020-10-19 13:31:25 ~ "; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestEndJSON(t *testing.T) {
	b, err := json.Marshal(Interval{Start: t0, End: Open()})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"start":"2020-10-19T13:31:25Z","end":null}`; got != want {
		t.Errorf("open interval JSON = %s, want %s", got, want)
	}

	var iv Interval
	if err := json.Unmarshal([]byte(`{"start":"2020-10-19T13:31:25Z","end":"2020-10-19T13:31:27Z"}`), &iv); err != nil {
		t.Fatal(err)
	}
	end, ok := iv.End.Time()
	if !ok || !end.Equal(t0.Add(2*time.Second)) {
		t.Errorf("decoded end = %v, %v", end, ok)
	}

	if err := json.Unmarshal([]byte(`{"start":"2020-10-19T13:31:25Z","end":null}`), &iv); err != nil {
		t.Fatal(err)
	}
	if !iv.End.IsOpen() {
		t.Error("null end should decode as open")
	}
}
