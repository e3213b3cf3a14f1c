package decoder

import (
	"fmt"
	"testing"

	"smartlift_monitor/internal/models"
)

func TestFloor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want int
	}{
		{"first byte verbatim", "0A0000000000", 10},
		{"lowercase hex", "ff0000000000", 255},
		{"only the floor byte present", "03", 3},
		{"empty defaults to 1", "", 1},
		{"one char defaults to 1", "0", 1},
		{"non-hex defaults to 1", "ZZ0000000000", 1},
		{"zero is passed through", "000000000000", 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Floor(tc.in); got != tc.want {
				t.Fatalf("Floor(%q) = %d; want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestDoor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want models.DoorState
	}{
		{"0100", models.DoorOpened},
		{"0101", models.DoorClosed},
		{"0102", models.DoorClosing},
		{"0103", models.DoorOpening},
		{"0104", models.DoorOpened},  // bits above the low two are ignored
		{"01FD", models.DoorClosed},  // 0xFD & 3 = 1
		{"01C3", models.DoorOpening}, // direction bits do not leak into the door
		{"01", models.DoorUnknown},
		{"010", models.DoorUnknown},
		{"01X1", models.DoorUnknown},
		{"", models.DoorUnknown},
	}
	for _, tc := range cases {
		if got := Door(tc.in); got != tc.want {
			t.Errorf("Door(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestDoor_AllByteValuesMaskLowBits(t *testing.T) {
	t.Parallel()

	want := []models.DoorState{models.DoorOpened, models.DoorClosed, models.DoorClosing, models.DoorOpening}
	for b := 0; b <= 0xFF; b++ {
		in := fmt.Sprintf("01%02X", b)
		if got := Door(in); got != want[b&3] {
			t.Fatalf("Door(%q) = %q; want %q", in, got, want[b&3])
		}
	}
}

func TestMode(t *testing.T) {
	t.Parallel()

	want := []models.Mode{
		models.ModeAuto, models.ModeINSP, models.ModeFire, models.ModeDriving,
		models.ModeSpecial, models.ModeLearning, models.ModeLock, models.ModeReset,
		models.ModeUPS, models.ModeIdle, models.ModeBreak, models.ModeBypass,
	}
	for v, m := range want {
		in := fmt.Sprintf("0101%02X", v)
		if got := Mode(in); got != m {
			t.Errorf("Mode(%q) = %q; want %q", in, got, m)
		}
	}
	for v := 12; v <= 15; v++ {
		in := fmt.Sprintf("0101%02X", v)
		if got := Mode(in); got != models.ModeError {
			t.Errorf("Mode(%q) = %q; want Error", in, got)
		}
	}

	if got := Mode("0101F1"); got != models.ModeINSP {
		t.Errorf("high nibble must be ignored, got %q", got)
	}
	for _, short := range []string{"", "01", "0101", "01010"} {
		if got := Mode(short); got != models.ModeError {
			t.Errorf("Mode(%q) = %q; want Error", short, got)
		}
	}
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
	}{
		{"01010000", 0},
		{"0101002A", 42},
		{"010100FF0000", 255},
		{"010100", 0},
		{"010100Q1", 0},
	}
	for _, tc := range cases {
		if got := ErrorCode(tc.in); got != tc.want {
			t.Errorf("ErrorCode(%q) = %d; want %d", tc.in, got, tc.want)
		}
	}
}

func TestSpeed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"1000 mm/s is 1.0", "0101000003E8", 1.0},
		{"zero", "010100000000", 0},
		{"1200 mm/s", "0101000004B0", 1.2},
		{"1299 mm/s truncates to 1.2", "010100000513", 1.2},
		{"99 mm/s truncates to 0", "010100000063", 0},
		{"max value", "01010000FFFF", 65.5},
		{"too short", "0101000003E", 0},
		{"garbled", "01010000XXE8", 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Speed(tc.in); got != tc.want {
				t.Fatalf("Speed(%q) = %v; want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDirection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want models.Direction
	}{
		{"bit7 alone is up", "0180", models.DirectionUp},
		{"bit6 alone is down", "0140", models.DirectionDown},
		{"both set, up wins", "01C0", models.DirectionUp},
		{"neither", "0103", models.DirectionNone},
		{"too short", "01", models.DirectionNone},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Direction(tc.in); got != tc.want {
				t.Fatalf("Direction(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestIsFloorCalled_SingleBit(t *testing.T) {
	t.Parallel()

	// byte0 = 0x01: only floor 1.
	for n := 1; n <= 32; n++ {
		got := IsFloorCalled("01000000", n)
		if want := n == 1; got != want {
			t.Fatalf("IsFloorCalled(01000000, %d) = %v; want %v", n, got, want)
		}
	}
}

func TestIsFloorCalled_MatchesManualExtraction(t *testing.T) {
	t.Parallel()

	bitmaps := []string{"A5", "A53C", "A53C0F", "A53C0F81", "ffffffff", "00000080"}
	for _, bm := range bitmaps {
		for n := 1; n <= 32; n++ {
			byteIndex := (n - 1) / 8
			want := false
			if len(bm) >= byteIndex*2+2 {
				var b uint8
				fmt.Sscanf(bm[byteIndex*2:byteIndex*2+2], "%02x", &b)
				want = b&(1<<uint((n-1)%8)) != 0
			}
			if got := IsFloorCalled(bm, n); got != want {
				t.Fatalf("IsFloorCalled(%q, %d) = %v; want %v", bm, n, got, want)
			}
		}
	}
}

func TestIsFloorCalled_OutOfRange(t *testing.T) {
	t.Parallel()

	all := "FFFFFFFFFFFFFFFF"
	for _, n := range []int{33, 40, 64, 1000} {
		if IsFloorCalled(all, n) {
			t.Fatalf("floor %d must never be called", n)
		}
	}
	for _, n := range []int{0, -1} {
		if IsFloorCalled(all, n) {
			t.Fatalf("floor %d must never be called", n)
		}
	}
	if !IsFloorCalled(all, 32) {
		t.Fatalf("floor 32 should be addressable")
	}
	if IsFloorCalled("FF", 9) {
		t.Fatalf("bitmap too short for byte 1 must read as not called")
	}
	if IsFloorCalled("", 1) {
		t.Fatalf("empty bitmap must read as not called")
	}
}

func TestCalled(t *testing.T) {
	t.Parallel()

	got := Called("05000080", 32)
	want := []int{1, 3, 32}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("Called = %v; want %v", got, want)
	}

	if got := Called("05000080", 2); fmt.Sprint(got) != "[1]" {
		t.Fatalf("Called limited to max floor 2 = %v; want [1]", got)
	}
	if got := Called("", 10); got == nil || len(got) != 0 {
		t.Fatalf("Called on empty bitmap = %#v; want empty non-nil slice", got)
	}
}

func TestEncodeState_DecodesBack(t *testing.T) {
	t.Parallel()

	in := State{
		Floor:     7,
		Door:      models.DoorClosing,
		Direction: models.DirectionDown,
		Mode:      models.ModeFire,
		ErrorCode: 0x12,
		Speed:     1.5,
	}
	hex := EncodeState(in)
	if len(hex) != MinStateHexLen {
		t.Fatalf("encoded length = %d; want %d", len(hex), MinStateHexLen)
	}
	if Floor(hex) != 7 || Door(hex) != models.DoorClosing || Direction(hex) != models.DirectionDown ||
		Mode(hex) != models.ModeFire || ErrorCode(hex) != 0x12 || Speed(hex) != 1.5 {
		t.Fatalf("decoded %q does not match %+v", hex, in)
	}

	if got := EncodeCalls([]int{1, 9, 32, 33, 0}); got != "01010080" {
		t.Fatalf("EncodeCalls = %q; want 01010080", got)
	}
}
