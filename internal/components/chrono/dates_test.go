package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		raw    string
		ok     bool
		expect time.Time
	}{
		{raw: "2023-05-17 08:30:00", ok: true, expect: time.Date(2023, time.May, 17, 8, 30, 0, 0, time.UTC)},
		{raw: "2023-05-17", ok: true, expect: time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC)},
		{raw: "17.05.2023 08:30:00", ok: true, expect: time.Date(2023, time.May, 17, 8, 30, 0, 0, time.UTC)},
		{raw: "17.05.2023", ok: true, expect: time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC)},
		{raw: "03/04/2023", ok: true, expect: time.Date(2023, time.April, 3, 0, 0, 0, 0, time.UTC)},
		{raw: "May 17, 2023", ok: true, expect: time.Date(2023, time.May, 17, 0, 0, 0, 0, time.UTC)},
		{raw: "September 5, 2022", ok: true, expect: time.Date(2022, time.September, 5, 0, 0, 0, 0, time.UTC)},
		{raw: "  2 hours ago ", ok: true, expect: now.Add(-2 * time.Hour)},
		{raw: "a day ago", ok: true, expect: now.AddDate(0, 0, -1)},
		{raw: "3 weeks ago", ok: true, expect: now.AddDate(0, 0, -21)},
		{raw: "5 дней назад", ok: true, expect: now.AddDate(0, 0, -5)},
		{raw: "2 часа назад", ok: true, expect: now.Add(-2 * time.Hour)},
		{raw: "1 год назад", ok: true, expect: now.AddDate(-1, 0, 0)},
		{raw: "вчера", ok: true, expect: now.AddDate(0, 0, -1)},
		{raw: "Yesterday", ok: true, expect: now.AddDate(0, 0, -1)},
		{raw: "4d", ok: true, expect: now.AddDate(0, 0, -4)},
		{raw: "", ok: false},
		{raw: "sometime soon", ok: false},
		{raw: "5 bananas ago", ok: false},
		{raw: "99999999999 hours ago", ok: false},
	}

	for _, test := range cases {
		t.Run(test.raw, func(t *testing.T) {
			parsed, ok := ParseDate(test.raw, now)
			require.Equal(t, test.ok, ok)
			if test.ok {
				require.True(t, test.expect.Equal(parsed), "expected %v, got %v", test.expect, parsed)
			}
		})
	}
}

func TestFixed(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	clock := Fixed{Time: time.Date(2024, time.January, 1, 0, 0, 0, 0, loc)}
	require.Equal(t, loc, clock.Location())
	require.True(t, clock.Now().Equal(clock.Time))
}

func FuzzParseRelative(f *testing.F) {
	for _, seed := range []string{"2 hours ago", "5 дней назад", "вчера", "4d", "99999999999 hours ago", "an hour ago"} {
		f.Add(seed)
	}
	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

	f.Fuzz(func(t *testing.T, raw string) {
		parsed, ok := ParseRelative(raw, now)
		if !ok {
			return
		}
		if parsed.After(now) {
			t.Fatalf("'%s' resolved to %v, after %v", raw, parsed, now)
		}
	})
}
