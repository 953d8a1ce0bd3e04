package aitime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday, 2025-03-19 10:00 UTC
var fixedNow = time.Date(2025, 3, 19, 10, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return NewParser(time.UTC)
}

func TestParser_ParseDate(t *testing.T) {
	parser := newTestParser()

	tests := []struct {
		name     string
		input    string
		wantDate string
	}{
		{"iso date", "2025-03-21", "2025-03-21"},
		{"iso datetime", "2025-03-21T16:00:00Z", "2025-03-21"},
		{"iso datetime lower t", "2025-03-21t16:00", "2025-03-21"},
		{"slash iso", "2025/04/02", "2025-04-02"},
		{"today", "today", "2025-03-19"},
		{"today mixed case", "  Today ", "2025-03-19"},
		{"tonight", "tonight", "2025-03-19"},
		{"tomorrow", "tomorrow", "2025-03-20"},
		{"yesterday", "yesterday", "2025-03-18"},
		{"day after tomorrow", "the day after tomorrow", "2025-03-21"},
		{"bare weekday", "Friday", "2025-03-21"},
		{"weekday is today", "wednesday", "2025-03-19"},
		{"weekday wraps", "monday", "2025-03-24"},
		{"abbreviated weekday", "fri", "2025-03-21"},
		{"this weekday", "this friday", "2025-03-21"},
		{"next weekday", "next friday", "2025-03-28"},
		{"next monday", "next monday", "2025-03-24"},
		{"on weekday", "on Friday", "2025-03-21"},
		{"this weekend", "this weekend", "2025-03-22"},
		{"in days", "in 3 days", "2025-03-22"},
		{"in a week", "in a week", "2025-03-26"},
		{"weeks from now", "2 weeks from now", "2025-04-02"},
		{"in months", "in two months", "2025-05-19"},
		{"next week", "next week", "2025-03-26"},
		{"month day", "March 21", "2025-03-21"},
		{"month ordinal", "Mar 21st", "2025-03-21"},
		{"month day year", "March 21, 2026", "2026-03-21"},
		{"day month year", "21 March 2026", "2026-03-21"},
		{"day of month", "5th of april", "2025-04-05"},
		{"past month day rolls over", "January 5", "2026-01-05"},
		{"slash month day", "3/25", "2025-03-25"},
		{"slash full year", "3/25/2026", "2026-03-25"},
		{"slash short year", "12/1/25", "2025-12-01"},
		{"past slash rolls over", "1/2", "2026-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.ParseDate(tt.input, fixedNow)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDate, got.Format(DateLayout))
			assert.Equal(t, 0, got.Hour())
		})
	}
}

func TestParser_ParseDateInvalid(t *testing.T) {
	parser := newTestParser()

	for _, input := range []string{"", "someday", "2/30", "13/1", "Febtember 3", "next blursday", "in many days"} {
		t.Run(input, func(t *testing.T) {
			_, err := parser.ParseDate(input, fixedNow)
			assert.Error(t, err)
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input  string
		want   Clock
		wantOK bool
	}{
		{"2:30pm", Clock{Hour: 14, Minute: 30}, true},
		{"2:30 PM", Clock{Hour: 14, Minute: 30}, true},
		{"12:00am", Clock{Hour: 0}, true},
		{"12:15pm", Clock{Hour: 12, Minute: 15}, true},
		{"12am", Clock{Hour: 0}, true},
		{"4pm", Clock{Hour: 16}, true},
		{"4 p.m.", Clock{Hour: 16}, true},
		{"9 am", Clock{Hour: 9}, true},
		{"at 5pm", Clock{Hour: 17}, true},
		{"16:00", Clock{Hour: 16}, true},
		{"07:45:10", Clock{Hour: 7, Minute: 45, Second: 10}, true},
		{"9", Clock{Hour: 9}, true},
		{"5 o'clock", Clock{Hour: 5}, true},
		{"noon", Clock{Hour: 12}, true},
		{"Midnight", Clock{}, true},
		{"", Clock{}, false},
		{"13pm", Clock{}, false},
		{"0am", Clock{}, false},
		{"25:00", Clock{}, false},
		{"4:75pm", Clock{}, false},
		{"4m", Clock{}, false},
		{"after lunch", Clock{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseClock(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestService_Normalize(t *testing.T) {
	ctx := context.Background()
	svc := NewService("UTC", FallbackTomorrow).WithNow(func() time.Time { return fixedNow })

	t.Run("date and time", func(t *testing.T) {
		got, err := svc.Normalize(ctx, "2025-03-21", "16:00", fixedNow)
		require.NoError(t, err)
		assert.True(t, got.HasTime)
		assert.False(t, got.DateDefaulted)
		assert.Equal(t, "2025-03-21 16:00", got.Time.Format("2006-01-02 15:04"))
	})

	t.Run("twelve hour time", func(t *testing.T) {
		got, err := svc.Normalize(ctx, "tomorrow", "2:30pm", fixedNow)
		require.NoError(t, err)
		assert.Equal(t, 14, got.Time.Hour())
		assert.Equal(t, 30, got.Time.Minute())
	})

	t.Run("relative to base", func(t *testing.T) {
		base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		got, err := svc.Normalize(ctx, "tomorrow", "", base)
		require.NoError(t, err)
		assert.Equal(t, "2025-06-02", FormatDate(got.Time))
		assert.False(t, got.HasTime)
	})

	t.Run("zero base uses now", func(t *testing.T) {
		got, err := svc.Normalize(ctx, "today", "", time.Time{})
		require.NoError(t, err)
		assert.Equal(t, "2025-03-19", FormatDate(got.Time))
	})

	t.Run("unparsable date falls back to tomorrow", func(t *testing.T) {
		got, err := svc.Normalize(ctx, "someday soon", "4pm", fixedNow)
		require.NoError(t, err)
		assert.True(t, got.DateDefaulted)
		assert.Equal(t, "2025-03-20 16:00", got.Time.Format("2006-01-02 15:04"))
	})

	t.Run("missing date falls back", func(t *testing.T) {
		got, err := svc.Normalize(ctx, "", "", fixedNow)
		require.NoError(t, err)
		assert.True(t, got.DateDefaulted)
		assert.Equal(t, "2025-03-20", FormatDate(got.Time))
	})

	t.Run("malformed time is date only", func(t *testing.T) {
		got, err := svc.Normalize(ctx, "2025-03-21", "after lunch", fixedNow)
		require.NoError(t, err)
		assert.False(t, got.HasTime)
		assert.True(t, got.TimeMalformed)
		assert.Equal(t, "2025-03-21 00:00", got.Time.Format("2006-01-02 15:04"))
	})

	t.Run("today policy", func(t *testing.T) {
		svc := NewService("UTC", FallbackToday).WithNow(func() time.Time { return fixedNow })
		got, err := svc.Normalize(ctx, "whenever", "", fixedNow)
		require.NoError(t, err)
		assert.Equal(t, "2025-03-19", FormatDate(got.Time))
	})

	t.Run("none policy", func(t *testing.T) {
		svc := NewService("UTC", FallbackNone).WithNow(func() time.Time { return fixedNow })
		_, err := svc.Normalize(ctx, "whenever", "", fixedNow)
		assert.ErrorIs(t, err, ErrUnparsableDate)
	})

	t.Run("unknown policy uses tomorrow", func(t *testing.T) {
		svc := NewService("UTC", "later").WithNow(func() time.Time { return fixedNow })
		got, err := svc.Normalize(ctx, "whenever", "", fixedNow)
		require.NoError(t, err)
		assert.Equal(t, "2025-03-20", FormatDate(got.Time))
	})
}

func TestService_Timezone(t *testing.T) {
	ctx := context.Background()

	svc := NewService("America/New_York", FallbackTomorrow)
	assert.Equal(t, "America/New_York", svc.Location().String())

	// 02:00 UTC on the 20th is still the 19th in New York.
	base := time.Date(2025, 3, 20, 2, 0, 0, 0, time.UTC)
	got, err := svc.Normalize(ctx, "today", "9pm", base)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-19 21:00", got.Time.Format("2006-01-02 15:04"))
	assert.Equal(t, "America/New_York", got.Time.Location().String())

	assert.Equal(t, "UTC", NewService("Mars/Olympus", FallbackTomorrow).Location().String())
}

func TestFormatRoundTrip(t *testing.T) {
	ctx := context.Background()
	dates := []string{"2025-03-21", "2025-01-01", "2025-12-31", "2024-02-29", "2025-03-09", "2025-11-02"}
	zones := []string{"UTC", "America/Los_Angeles", "Asia/Tokyo", "Pacific/Kiritimati", "Pacific/Pago_Pago"}

	for _, zone := range zones {
		svc := NewService(zone, FallbackTomorrow).WithNow(func() time.Time { return fixedNow })
		for _, date := range dates {
			for _, clock := range []string{"", "00:00", "12:00am", "11:59pm", "2:30pm"} {
				got, err := svc.Normalize(ctx, date, clock, fixedNow)
				require.NoError(t, err)
				assert.Equal(t, date, FormatDate(got.Time), "zone=%s clock=%q", zone, clock)

				again, err := svc.Normalize(ctx, FormatDate(got.Time), FormatClock(got.Time), fixedNow)
				require.NoError(t, err)
				assert.True(t, got.Time.Equal(again.Time), "zone=%s date=%s clock=%q", zone, date, clock)
			}
		}
	}
}
