package status

import (
	"time"

	"github.com/scmhub/calendar"
)

// KRX regular session in local time.
const (
	krxOpenMinute  = 9 * 60
	krxCloseMinute = 15*60 + 30
)

// MarketSession reports whether the Korea Exchange regular session is open.
type MarketSession struct {
	cal *calendar.Calendar
	loc *time.Location
}

// SessionState is a point-in-time view of the exchange calendar.
type SessionState struct {
	Open        bool   `json:"open"`
	BusinessDay bool   `json:"business_day"`
	LocalTime   string `json:"local_time"`
}

// NewMarketSession loads the XKRX calendar. When it is unavailable, a
// weekday 09:00-15:30 KST session without holidays is assumed.
func NewMarketSession() *MarketSession {
	cal := calendar.GetCalendar("xkrx")
	if cal != nil && cal.Loc != nil {
		return &MarketSession{cal: cal, loc: cal.Loc}
	}

	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.FixedZone("KST", 9*60*60)
	}
	return &MarketSession{cal: cal, loc: loc}
}

// At returns the session state at t.
func (m *MarketSession) At(t time.Time) SessionState {
	t = t.In(m.loc)
	s := SessionState{LocalTime: t.Format(time.RFC3339)}

	if m.cal != nil {
		s.BusinessDay = m.cal.IsBusinessDay(t)
		s.Open = m.cal.IsOpen(t)
		return s
	}

	wd := t.Weekday()
	s.BusinessDay = wd != time.Saturday && wd != time.Sunday
	minute := t.Hour()*60 + t.Minute()
	s.Open = s.BusinessDay && minute >= krxOpenMinute && minute < krxCloseMinute
	return s
}
