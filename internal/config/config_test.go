package config

import (
	"strings"
	"testing"
)

func TestModelLineDispatchesDeviceAddressAndOptions(t *testing.T) {
	var gotDev uint16
	var gotOpts []Option
	p := New()
	p.Register("TAPE", KindModel, func(devNum uint16, value string, opts []Option) error {
		gotDev = devNum
		gotOpts = opts
		return nil
	})

	err := p.Load(strings.NewReader("tape 20 write density=1600\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotDev != 0x20 {
		t.Fatalf("want devNum 0x20, got %#x", gotDev)
	}
	if len(gotOpts) != 2 {
		t.Fatalf("want 2 options, got %+v", gotOpts)
	}
	if gotOpts[0].Name != "WRITE" {
		t.Fatalf("want first option WRITE, got %+v", gotOpts[0])
	}
	if gotOpts[1].Name != "DENSITY" || gotOpts[1].EqualOpt != "1600" {
		t.Fatalf("want DENSITY=1600, got %+v", gotOpts[1])
	}
}

func TestModelLineWithoutAddressIsRejected(t *testing.T) {
	p := New()
	p.Register("TAPE", KindModel, func(uint16, string, []Option) error { return nil })
	if err := p.Load(strings.NewReader("tape\n")); err == nil {
		t.Fatal("want an error when a model line has no device address")
	}
}

func TestSwitchLineRejectsTrailingOptions(t *testing.T) {
	p := New()
	fired := false
	p.Register("TRACE", KindSwitch, func(uint16, string, []Option) error {
		fired = true
		return nil
	})
	if err := p.Load(strings.NewReader("trace\n")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !fired {
		t.Fatal("want the switch handler to run")
	}
	if err := p.Load(strings.NewReader("trace extra\n")); err == nil {
		t.Fatal("want an error when a switch line carries trailing tokens")
	}
}

func TestOptionLineTakesExactlyOneValue(t *testing.T) {
	var gotVal string
	p := New()
	p.Register("MEMORY", KindOption, func(_ uint16, value string, _ []Option) error {
		gotVal = value
		return nil
	})
	if err := p.Load(strings.NewReader("memory 64K\n")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotVal != "64K" {
		t.Fatalf("want value 64K, got %q", gotVal)
	}
}

func TestCommentAndBlankLinesAreSkipped(t *testing.T) {
	p := New()
	calls := 0
	p.Register("TRACE", KindSwitch, func(uint16, string, []Option) error {
		calls++
		return nil
	})
	err := p.Load(strings.NewReader("# a comment\n\ntrace\n  # another\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if calls != 1 {
		t.Fatalf("want exactly one dispatch, got %d", calls)
	}
}

func TestUnknownTokenIsAnError(t *testing.T) {
	p := New()
	if err := p.Load(strings.NewReader("bogus 10\n")); err == nil {
		t.Fatal("want an error for an unregistered token")
	}
}

func TestQuotedEqualsValuePreservesSpaces(t *testing.T) {
	var got string
	p := New()
	p.Register("LOG", KindOptions, func(_ uint16, _ string, opts []Option) error {
		if len(opts) != 1 {
			t.Fatalf("want one option, got %+v", opts)
		}
		got = opts[0].EqualOpt
		return nil
	})
	if err := p.Load(strings.NewReader(`log file name="run log" ` + "\n")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "run log" {
		t.Fatalf("want quoted value with embedded space, got %q", got)
	}
}

func TestTwoParsersDoNotShareRegistrations(t *testing.T) {
	p1 := New()
	p2 := New()
	p1.Register("ONLYP1", KindSwitch, func(uint16, string, []Option) error { return nil })

	if err := p2.Load(strings.NewReader("onlyp1\n")); err == nil {
		t.Fatal("want p2 to reject a token only registered on p1")
	}
}
