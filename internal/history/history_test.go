package history

import (
	"errors"
	"testing"

	"github.com/Dicklesworthstone/pavcore/internal/ballot"
)

func TestStringParseRoundTrip(t *testing.T) {
	tests := []struct {
		h    History
		text string
	}{
		{Root(), ""},
		{History{{ballot.Of(0), ballot.Of(1)}}, "0>1"},
		{History{{ballot.Of(0, 1), ballot.Of(2, 3)}, {ballot.Of(2, 3), ballot.Of(0, 11)}}, "0,1>2,3;2,3>0,11"},
	}
	for _, tt := range tests {
		if got := tt.h.String(); got != tt.text {
			t.Errorf("String() = %q, want %q", got, tt.text)
		}
		parsed, err := Parse(tt.text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.text, err)
		}
		if !parsed.Equal(tt.h) {
			t.Errorf("Parse(%q) = %v, want %v", tt.text, parsed, tt.h)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, text := range []string{"0,1", "a>1", "0>1;;", "0,0>1", "0>40", "-1>2"} {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) should fail", text)
		}
	}
}

func TestExtendDoesNotAlias(t *testing.T) {
	base := History{{ballot.Of(0), ballot.Of(1)}}
	a := base.Extend(Step{ballot.Of(1), ballot.Of(0)})
	b := base.Extend(Step{ballot.Of(1), ballot.Of(2)})
	if a[1].Deviation != ballot.Of(0) || b[1].Deviation != ballot.Of(2) {
		t.Fatalf("extensions share storage: %v %v", a, b)
	}
	if base.Depth() != 1 {
		t.Fatalf("base modified: %v", base)
	}

	parent := a.Parent()
	c := parent.Extend(Step{ballot.Of(1), ballot.Of(2)})
	if a[1].Deviation != ballot.Of(0) {
		t.Fatalf("extending a parent clobbered the child: %v %v", a, c)
	}
}

func TestFixedAndDistinguishingSets(t *testing.T) {
	h := History{
		{ballot.Of(0, 1), ballot.Of(2)},
		{ballot.Of(1, 2), ballot.Of(3)},
	}
	if got := h.Fixed(); got != ballot.Of(2, 3) {
		t.Errorf("Fixed() = %v, want {2,3}", got)
	}
	sets := h.DistinguishingSets()
	want := []ballot.Set{ballot.Of(2), ballot.Of(3), ballot.Of(0, 1), ballot.Of(1, 2)}
	if len(sets) != len(want) {
		t.Fatalf("DistinguishingSets() = %v, want %v", sets, want)
	}
	for i := range want {
		if sets[i] != want[i] {
			t.Errorf("DistinguishingSets()[%d] = %v, want %v", i, sets[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		h       History
		wantErr bool
	}{
		{"root", Root(), false},
		{"single step", History{{ballot.Of(0, 1), ballot.Of(2)}}, false},
		{"two steps", History{{ballot.Of(0, 1), ballot.Of(2)}, {ballot.Of(0, 2), ballot.Of(1, 3)}}, false},
		{"wrong committee size", History{{ballot.Of(0), ballot.Of(2)}}, true},
		{"empty deviation", History{{ballot.Of(0, 1), 0}}, true},
		{"deviation too large", History{{ballot.Of(0, 1), ballot.Of(2, 3, 4)}}, true},
		{"deviation inside committee", History{{ballot.Of(0, 1), ballot.Of(1)}}, true},
		{"committee drops deviation", History{{ballot.Of(0, 1), ballot.Of(2)}, {ballot.Of(0, 1), ballot.Of(3)}}, true},
		{"outside ground set", History{{ballot.Of(0, 9), ballot.Of(2)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.h.Validate(5, 2)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedHistory) {
				t.Errorf("error %v does not wrap ErrMalformedHistory", err)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	if got := Root().Label(); got != "()" {
		t.Errorf("root label = %q", got)
	}
	if got := (History{{ballot.Of(0), ballot.Of(1)}}).Label(); got != "0>1" {
		t.Errorf("label = %q", got)
	}
}

func TestFromElems(t *testing.T) {
	h, err := FromElems([][2][]int{{{0, 1}, {2}}, {{1, 2}, {0}}})
	if err != nil {
		t.Fatalf("FromElems: %v", err)
	}
	if got := h.String(); got != "0,1>2;1,2>0" {
		t.Errorf("FromElems = %q", got)
	}
	if _, err := FromElems([][2][]int{{{0, 99}, {2}}}); err == nil {
		t.Error("FromElems should reject out-of-range alternatives")
	}
}
