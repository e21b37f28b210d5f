package us

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"macross/internal/util"
)

// settleHour and settleMinute mark when a session's daily bar is final in
// Eastern time (after the extended-hours close).
const (
	settleHour   = 20
	settleMinute = 5
)

// calendarClient is the part of the Alpaca trading client this package needs.
type calendarClient interface {
	GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error)
}

// LatestFinishedTradingDay asks the Alpaca market calendar for the most
// recent session whose daily bar has settled.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return latestFinishedTradingDay(client, time.Now())
}

func latestFinishedTradingDay(client calendarClient, now time.Time) (time.Time, error) {
	et := eastern()
	now = now.In(et)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	settled := !now.Before(time.Date(now.Year(), now.Month(), now.Day(), settleHour, settleMinute, 0, 0, et))

	days, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("fetching market calendar: %w", err)
	}

	var latest time.Time
	for _, d := range days {
		day, err := util.ParseDay(d.Date)
		if err != nil {
			continue
		}
		if day.After(today) || (day.Equal(today) && !settled) {
			continue
		}
		if day.After(latest) {
			latest = day
		}
	}
	if latest.IsZero() {
		return time.Time{}, fmt.Errorf("no finished session in the calendar week before %s", util.FormatDay(today))
	}
	return latest, nil
}

// eastern returns America/New_York, or a fixed UTC-5 zone when the tz
// database is unavailable.
func eastern() *time.Location {
	if et, err := time.LoadLocation("America/New_York"); err == nil {
		return et
	}
	return time.FixedZone("EST", -5*60*60)
}
